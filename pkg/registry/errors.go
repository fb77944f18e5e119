package registry

import "errors"

var (
	// ErrEmptySessionID is returned when an operation is attempted without a session id.
	ErrEmptySessionID = errors.New("registry: empty session id")

	// ErrEmptyTenant is returned by Switch when no tenant name is given.
	ErrEmptyTenant = errors.New("registry: empty tenant name")

	// ErrRegistryClosed is returned once Close has been called.
	ErrRegistryClosed = errors.New("registry: closed")
)
