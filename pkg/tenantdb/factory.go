package tenantdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	maxTenantNameLength = 128
)

var validTenantName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Factory opens and disposes tenant connections.
type Factory interface {
	// Open returns a ready-to-use connection for tenant. The tenant's storage
	// location and schema are created when missing. Failures are reported
	// as ErrStorageUnavailable and never leave a half-open Conn behind.
	Open(ctx context.Context, tenant string) (*Conn, error)

	// Close releases the connection. It is safe to call more than once and
	// on connections that were only partially set up.
	Close(conn *Conn) error
}

// Option configures a factory.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used to report opens and migrations.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewFromConfig builds the factory selected by cfg.Driver.
func NewFromConfig(ctx context.Context, cfg Config, opts ...Option) (Factory, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return NewSQLiteFactory(cfg, opts...), nil
	case DriverPostgres:
		return NewPostgresFactory(ctx, cfg, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// ValidateTenantName rejects names that could escape the storage directory
// or are not usable as a database identifier.
func ValidateTenantName(name string) error {
	if name == "" || len(name) > maxTenantNameLength {
		return errors.Join(ErrInvalidTenantName, fmt.Errorf("length of %q out of range", name))
	}
	if strings.Contains(name, "..") || !validTenantName.MatchString(name) {
		return errors.Join(ErrInvalidTenantName, fmt.Errorf("%q contains forbidden characters", name))
	}
	return nil
}

// storageError marks err as a storage failure for tenant.
func storageError(tenant string, err error) error {
	return errors.Join(ErrStorageUnavailable, fmt.Errorf("tenant %q: %w", tenant, err))
}

func connectTimeout(cfg Config) time.Duration {
	if cfg.ConnectTimeout > 0 {
		return cfg.ConnectTimeout
	}
	return DefaultConfig().ConnectTimeout
}
