package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrymomot/tabble/pkg/gate"
	"github.com/dmitrymomot/tabble/pkg/logger"
	"github.com/dmitrymomot/tabble/pkg/response"
	"github.com/dmitrymomot/tabble/pkg/sessionid"
	"github.com/dmitrymomot/tabble/pkg/tenantdb"
)

// Defaults stored for a tenant that has no settings row yet.
const (
	defaultHotelName     = "Tabble Hotel"
	defaultAddress       = "123 Main Street, City"
	defaultContactNumber = "+1 123-456-7890"
	defaultEmail         = "info@tabblehotel.com"
)

const (
	selectSettingsQuery = `SELECT id, hotel_name, address, contact_number, email, tax_id, logo_path
FROM settings ORDER BY id LIMIT 1`
	insertSettingsQuery = `INSERT INTO settings (hotel_name, address, contact_number, email, tax_id)
VALUES (?, ?, ?, ?, ?) RETURNING id`
	updateSettingsQuery = `UPDATE settings
SET hotel_name = ?, address = ?, contact_number = ?, email = ?, tax_id = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?`
)

type hotelSettings struct {
	ID            int64   `json:"id"`
	HotelName     string  `json:"hotel_name"`
	Address       *string `json:"address"`
	ContactNumber *string `json:"contact_number"`
	Email         *string `json:"email"`
	TaxID         *string `json:"tax_id"`
	LogoPath      *string `json:"logo_path"`
}

type settingsUpdate struct {
	HotelName     string  `json:"hotel_name"`
	Address       *string `json:"address"`
	ContactNumber *string `json:"contact_number"`
	Email         *string `json:"email"`
	TaxID         *string `json:"tax_id"`
}

// getSettings returns the hotel settings of the session's tenant, creating
// the default row on first access.
func (h *handlers) getSettings(_ http.ResponseWriter, r *http.Request) response.Response {
	ctx := r.Context()

	var s hotelSettings
	err := h.sessions.WithTx(ctx, sessionid.FromContext(ctx), func(tx *tenantdb.Tx) error {
		err := scanSettings(ctx, tx, &s)
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		s = hotelSettings{
			HotelName:     defaultHotelName,
			Address:       ptr(defaultAddress),
			ContactNumber: ptr(defaultContactNumber),
			Email:         ptr(defaultEmail),
		}
		return tx.QueryRowContext(ctx, insertSettingsQuery,
			s.HotelName, s.Address, s.ContactNumber, s.Email, s.TaxID,
		).Scan(&s.ID)
	})
	if err != nil {
		return h.storageError(ctx, "failed to load settings", err)
	}
	return response.JSON(s)
}

// updateSettings replaces the editable settings fields.
func (h *handlers) updateSettings(w http.ResponseWriter, r *http.Request) response.Response {
	var req settingsUpdate
	if err := response.DecodeJSON(w, r, &req); err != nil {
		return response.JSONError(err)
	}
	req.HotelName = strings.TrimSpace(req.HotelName)
	if req.HotelName == "" {
		return response.JSONError(response.ErrUnprocessableEntity.WithMessage("hotel_name is required"))
	}

	ctx := r.Context()

	var s hotelSettings
	err := h.sessions.WithTx(ctx, sessionid.FromContext(ctx), func(tx *tenantdb.Tx) error {
		err := scanSettings(ctx, tx, &s)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if err := tx.QueryRowContext(ctx, insertSettingsQuery,
				req.HotelName, req.Address, req.ContactNumber, req.Email, req.TaxID,
			).Scan(&s.ID); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if _, err := tx.ExecContext(ctx, updateSettingsQuery,
				req.HotelName, req.Address, req.ContactNumber, req.Email, req.TaxID, s.ID,
			); err != nil {
				return err
			}
		}
		return scanSettings(ctx, tx, &s)
	})
	if err != nil {
		return h.storageError(ctx, "failed to update settings", err)
	}
	return response.JSON(s)
}

func (h *handlers) storageError(ctx context.Context, msg string, err error) response.Response {
	h.logger.ErrorContext(ctx, msg,
		logger.SessionID(sessionid.FromContext(ctx)),
		logger.Tenant(gate.TenantFromContext(ctx)),
		logger.Error(err),
	)
	return response.JSONError(gate.Classify(err))
}

func scanSettings(ctx context.Context, tx *tenantdb.Tx, s *hotelSettings) error {
	return tx.QueryRowContext(ctx, selectSettingsQuery).Scan(
		&s.ID, &s.HotelName, &s.Address, &s.ContactNumber, &s.Email, &s.TaxID, &s.LogoPath,
	)
}

func ptr[T any](v T) *T {
	return &v
}
