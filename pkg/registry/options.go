package registry

import (
	"log/slog"
	"time"
)

// Option configures a Registry.
type Option func(*Registry)

// WithConfig applies every field of cfg.
func WithConfig(cfg Config) Option {
	return func(r *Registry) {
		if cfg.DefaultTenant != "" {
			r.defaultTenant = cfg.DefaultTenant
		}
		r.idleTimeout = cfg.IdleTimeout
		r.cleanupInterval = cfg.CleanupInterval
	}
}

// WithDefaultTenant sets the tenant bound to sessions that did not pick one.
func WithDefaultTenant(name string) Option {
	return func(r *Registry) {
		if name != "" {
			r.defaultTenant = name
		}
	}
}

// WithIdleTimeout enables disposal of sessions idle for longer than timeout,
// checked every interval.
func WithIdleTimeout(timeout, interval time.Duration) Option {
	return func(r *Registry) {
		r.idleTimeout = timeout
		r.cleanupInterval = interval
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests of idle expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}
