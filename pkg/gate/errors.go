package gate

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/tabble/pkg/credentials"
	"github.com/dmitrymomot/tabble/pkg/registry"
	"github.com/dmitrymomot/tabble/pkg/response"
	"github.com/dmitrymomot/tabble/pkg/tenantdb"
)

// ErrNoTenantSelected is returned for tenant-scoped requests of a session
// that has not selected a tenant and supplied no credentials.
var ErrNoTenantSelected = errors.New("gate: no tenant selected")

// ErrTooManyAttempts is returned when the credential limiter denies a
// request that carries tenant credentials.
var ErrTooManyAttempts = errors.New("gate: too many credential attempts")

// Client-facing errors of the tenant selection flow.
var (
	ErrDatabaseNotSelected = response.NewHTTPError(http.StatusBadRequest, "database_not_selected", "No database selected. Please select a database first.")
	ErrDatabaseAuthFailed  = response.NewHTTPError(http.StatusUnauthorized, "database_auth_failed", "Invalid database credentials")
	ErrDatabaseNotFound    = response.NewHTTPError(http.StatusNotFound, "database_not_found", "Database not found")
	ErrDatabaseUnavailable = response.NewHTTPError(http.StatusInternalServerError, "database_unavailable", "Failed to switch database")
	ErrConfigMissing       = response.NewHTTPError(http.StatusInternalServerError, "database_config_missing", "Database configuration not found")
	ErrShuttingDown        = response.NewHTTPError(http.StatusServiceUnavailable, "service_unavailable", "Server is shutting down")
	ErrAttemptsExceeded    = response.ErrTooManyRequests.WithMessage("Too many attempts, try again later")
)

// Classify maps an error of the tenant selection flow to the HTTP error
// reported to the client.
func Classify(err error) response.HTTPError {
	var httpErr response.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, ErrNoTenantSelected):
		return ErrDatabaseNotSelected
	case errors.Is(err, ErrTooManyAttempts):
		return ErrAttemptsExceeded
	case errors.Is(err, credentials.ErrAuthenticationFailed):
		return ErrDatabaseAuthFailed
	case errors.Is(err, credentials.ErrTenantNotFound):
		return ErrDatabaseNotFound
	case errors.Is(err, credentials.ErrStoreUnavailable):
		return ErrConfigMissing
	case errors.Is(err, tenantdb.ErrStorageUnavailable):
		return ErrDatabaseUnavailable
	case errors.Is(err, registry.ErrRegistryClosed):
		return ErrShuttingDown
	default:
		return response.ErrInternalServerError
	}
}
