package registry

import "time"

// Config holds registry configuration.
type Config struct {
	// DefaultTenant is bound to sessions that never selected a tenant.
	DefaultTenant string `env:"TENANT_DEFAULT" envDefault:"tabble_new.db"`

	// IdleTimeout disposes sessions that have not borrowed a connection for this long (0 disables).
	IdleTimeout time.Duration `env:"REGISTRY_IDLE_TIMEOUT" envDefault:"30m"`

	// CleanupInterval is how often idle sessions are looked for (0 disables).
	CleanupInterval time.Duration `env:"REGISTRY_CLEANUP_INTERVAL" envDefault:"5m"`
}

// DefaultTenant is the tenant bound to sessions that did not pick one.
const DefaultTenant = "tabble_new.db"

// DefaultConfig returns default registry configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTenant:   DefaultTenant,
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}
