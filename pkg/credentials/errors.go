package credentials

import "errors"

var (
	// ErrTenantNotFound is returned when no record exists for the tenant.
	ErrTenantNotFound = errors.New("credentials: tenant not found")

	// ErrAuthenticationFailed is returned when the secret does not match.
	ErrAuthenticationFailed = errors.New("credentials: authentication failed")

	// ErrStoreUnavailable is returned when the backing store cannot be read.
	ErrStoreUnavailable = errors.New("credentials: store unavailable")

	ErrUnknownBackend = errors.New("credentials: unknown backend")
	ErrEmptySecret    = errors.New("credentials: empty secret")
)
