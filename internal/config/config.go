// Package config loads the tabble service configuration from the
// environment, optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/tabble/pkg/credentials"
	"github.com/dmitrymomot/tabble/pkg/httpserver"
	"github.com/dmitrymomot/tabble/pkg/logger"
	"github.com/dmitrymomot/tabble/pkg/ratelimiter"
	"github.com/dmitrymomot/tabble/pkg/registry"
	"github.com/dmitrymomot/tabble/pkg/tenantdb"
)

var (
	ErrLoadEnvFile   = errors.New("config: failed to load env file")
	ErrParsingConfig = errors.New("config: failed to parse environment")
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config is the complete service configuration.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	Name     string `env:"APP_NAME" envDefault:"tabble"`
	LogLevel string `env:"LOG_LEVEL"`

	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	ReadyTimeout time.Duration `env:"READY_TIMEOUT" envDefault:"2s"`

	HTTP        httpserver.Config
	Tenant      tenantdb.Config
	Registry    registry.Config
	Credentials credentials.Config
	SwitchRate  ratelimiter.Config
}

// Load reads the given .env files, or ./.env when none are named, and parses
// the environment into a Config. Variables already set in the process
// environment win over file values. A missing default .env is not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, errors.Join(ErrLoadEnvFile, err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return Config{}, errors.Join(ErrLoadEnvFile, err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values that would only fail later at runtime.
func (c Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{logger.EnvDevelopment, logger.EnvStaging, logger.EnvProduction}, c.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV %q: must be %s, %s or %s", c.Env, logger.EnvDevelopment, logger.EnvStaging, logger.EnvProduction))
	}
	if c.LogLevel != "" {
		if _, err := logger.ParseLevel(c.LogLevel); err != nil {
			errs = append(errs, err)
		}
	}
	switch c.Tenant.Driver {
	case tenantdb.DriverSQLite:
	case tenantdb.DriverPostgres:
		if c.Tenant.PostgresURL == "" {
			errs = append(errs, errors.New("TENANT_PG_URL is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("TENANT_DRIVER %q: must be %s or %s", c.Tenant.Driver, tenantdb.DriverSQLite, tenantdb.DriverPostgres))
	}
	switch c.Credentials.Backend {
	case credentials.BackendCSV, credentials.BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("CREDENTIALS_BACKEND %q: must be %s or %s", c.Credentials.Backend, credentials.BackendCSV, credentials.BackendRedis))
	}
	if c.SwitchRate.Enabled() && (c.SwitchRate.RefillRate <= 0 || c.SwitchRate.RefillInterval <= 0) {
		errs = append(errs, errors.New("SWITCH_RATE_REFILL and SWITCH_RATE_INTERVAL must be positive"))
	}
	if err := tenantdb.ValidateTenantName(c.Registry.DefaultTenant); err != nil {
		errs = append(errs, fmt.Errorf("TENANT_DEFAULT: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// Level returns the configured log level. ok is false when LOG_LEVEL is
// unset and the environment default applies.
func (c Config) Level() (level slog.Level, ok bool) {
	if c.LogLevel == "" {
		return 0, false
	}
	level, err := logger.ParseLevel(c.LogLevel)
	return level, err == nil
}
