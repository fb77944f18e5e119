package credentials

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/dmitrymomot/tabble/pkg/logger"
)

// Source gives read access to credential records.
type Source interface {
	// Lookup returns the record of tenant or ErrTenantNotFound.
	Lookup(ctx context.Context, tenant string) (Record, error)
	// List returns every known tenant name.
	List(ctx context.Context) ([]string, error)
}

// Store verifies tenant secrets against a Source.
type Store struct {
	src    Source
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore wraps src.
func NewStore(src Source, opts ...Option) *Store {
	s := &Store{src: src, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("credentials"))
	return s
}

// Verify checks secret for tenant. It returns nil on success,
// ErrTenantNotFound for unknown tenants, ErrAuthenticationFailed on a
// mismatch or an empty secret and ErrStoreUnavailable when the source
// cannot be read.
func (s *Store) Verify(ctx context.Context, tenant, secret string) error {
	if tenant == "" {
		return ErrTenantNotFound
	}

	rec, err := s.src.Lookup(ctx, tenant)
	if err != nil {
		if !errors.Is(err, ErrTenantNotFound) {
			s.logger.ErrorContext(ctx, "credential lookup failed", logger.Tenant(tenant), logger.Error(err))
		}
		return err
	}

	if !rec.Match(secret) {
		s.logger.WarnContext(ctx, "tenant secret mismatch", logger.Tenant(tenant))
		return ErrAuthenticationFailed
	}
	return nil
}

// List returns the names of every known tenant.
func (s *Store) List(ctx context.Context) ([]string, error) {
	names, err := s.src.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "credential listing failed", logger.Error(err))
		return nil, err
	}
	return names, nil
}

// Healthcheck returns a readiness probe for the underlying source.
func (s *Store) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		return ping(ctx, s.src)
	}
}

// Close releases the source when it holds resources.
func (s *Store) Close() error {
	return closeSource(s.src)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func ping(ctx context.Context, src Source) error {
	if p, ok := src.(pinger); ok {
		return p.Ping(ctx)
	}
	_, err := src.List(ctx)
	return err
}

func closeSource(src Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
