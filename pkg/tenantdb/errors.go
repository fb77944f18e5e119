package tenantdb

import "errors"

var (
	// ErrStorageUnavailable is returned when a tenant's storage cannot be opened or initialized.
	ErrStorageUnavailable = errors.New("tenant storage unavailable")

	// ErrInvalidTenantName is returned when a tenant name cannot be mapped to a storage location.
	ErrInvalidTenantName = errors.New("invalid tenant name")

	// ErrConnClosed is returned when borrowing from a connection that was already disposed.
	ErrConnClosed = errors.New("tenant connection closed")

	// ErrUnknownDriver is returned by NewFromConfig for an unsupported storage driver.
	ErrUnknownDriver = errors.New("unknown tenant storage driver")

	ErrFailedToApplyMigrations = errors.New("failed to apply tenant migrations")
	ErrHealthcheckFailed       = errors.New("tenant healthcheck failed, connection is not available")
)
