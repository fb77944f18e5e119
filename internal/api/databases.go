package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrymomot/tabble/pkg/credentials"
	"github.com/dmitrymomot/tabble/pkg/gate"
	"github.com/dmitrymomot/tabble/pkg/logger"
	"github.com/dmitrymomot/tabble/pkg/response"
	"github.com/dmitrymomot/tabble/pkg/sessionid"
)

// passwordMask replaces tenant secrets in listings.
const passwordMask = "********"

type databaseEntry struct {
	DatabaseName string `json:"database_name"`
	Password     string `json:"password"`
}

type databaseList struct {
	Databases []databaseEntry `json:"databases"`
}

type currentDatabase struct {
	DatabaseName string `json:"database_name"`
}

type switchRequest struct {
	DatabaseName string `json:"database_name"`
	Password     string `json:"password"`
}

type switchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (h *handlers) listDatabases(_ http.ResponseWriter, r *http.Request) response.Response {
	names, err := h.creds.List(r.Context())
	if err != nil {
		return response.JSONError(gate.Classify(err))
	}

	list := databaseList{Databases: make([]databaseEntry, 0, len(names))}
	for _, name := range names {
		list.Databases = append(list.Databases, databaseEntry{DatabaseName: name, Password: passwordMask})
	}
	return response.JSON(list)
}

// currentDatabase reports the session's tenant, or the default tenant for
// sessions that never selected one. It never opens a connection.
func (h *handlers) currentDatabase(_ http.ResponseWriter, r *http.Request) response.Response {
	id := sessionid.FromContext(r.Context())
	return response.JSON(currentDatabase{DatabaseName: h.sessions.CurrentTenant(id)})
}

// switchDatabase verifies the tenant credentials and rebinds the session.
// A failed switch leaves the session on its previous tenant.
func (h *handlers) switchDatabase(w http.ResponseWriter, r *http.Request) response.Response {
	var req switchRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		return response.JSONError(err)
	}
	name := strings.TrimSpace(req.DatabaseName)
	if name == "" {
		return response.JSONError(response.ErrUnprocessableEntity.WithMessage("database_name is required"))
	}

	ctx := r.Context()
	id := sessionid.FromContext(ctx)

	if err := h.creds.Verify(ctx, name, req.Password); err != nil {
		return response.JSONError(switchError(name, err))
	}
	if _, err := h.sessions.Switch(ctx, id, name); err != nil {
		return response.JSONError(switchError(name, err))
	}

	h.logger.InfoContext(ctx, "session switched database", logger.SessionID(id), logger.Tenant(name))
	return response.JSON(switchResponse{
		Success: true,
		Message: "Successfully switched to database: " + name,
	})
}

// endSession disposes the session's connection. Later requests with the same
// session id start from the default tenant again.
func (h *handlers) endSession(_ http.ResponseWriter, r *http.Request) response.Response {
	ctx := r.Context()
	id := sessionid.FromContext(ctx)
	if err := h.sessions.Cleanup(ctx, id); err != nil {
		// The session is forgotten even when closing its connection failed.
		h.logger.WarnContext(ctx, "session cleanup incomplete", logger.SessionID(id), logger.Error(err))
	}
	return response.NoContent()
}

func switchError(name string, err error) error {
	httpErr := gate.Classify(err)
	switch {
	case errors.Is(err, credentials.ErrTenantNotFound):
		return httpErr.WithMessage(fmt.Sprintf("Database '%s' not found", name))
	case errors.Is(err, credentials.ErrAuthenticationFailed):
		return httpErr.WithMessage("Invalid password")
	}
	return httpErr
}
