package tenantdb

import "time"

// Config controls how tenant storage is located and pooled.
type Config struct {
	// Driver selects the tenant storage backend: "sqlite" or "postgres".
	Driver string `env:"TENANT_DRIVER" envDefault:"sqlite"`

	// DataDir is the directory holding per-tenant SQLite files.
	DataDir string `env:"TENANT_DATA_DIR" envDefault:"."`

	MaxOpenConns    int           `env:"TENANT_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"TENANT_MAX_IDLE_CONNS" envDefault:"2"`
	ConnMaxIdleTime time.Duration `env:"TENANT_CONN_MAX_IDLE_TIME" envDefault:"5m"`

	// BusyTimeout is how long SQLite waits on a locked database file before failing a statement.
	BusyTimeout time.Duration `env:"TENANT_BUSY_TIMEOUT" envDefault:"5s"`

	// PostgresURL points at the cluster hosting one database per tenant (postgres driver only).
	PostgresURL string `env:"TENANT_PG_URL"`

	// ConnectTimeout bounds the connectivity check performed while opening a tenant.
	ConnectTimeout time.Duration `env:"TENANT_CONNECT_TIMEOUT" envDefault:"10s"`
}

// DefaultConfig returns the configuration used when nothing is read from the environment.
func DefaultConfig() Config {
	return Config{
		Driver:          DriverSQLite,
		DataDir:         ".",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxIdleTime: 5 * time.Minute,
		BusyTimeout:     5 * time.Second,
		ConnectTimeout:  10 * time.Second,
	}
}
