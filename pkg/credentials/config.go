package credentials

import (
	"context"
	"fmt"
	"time"
)

const (
	BackendCSV   = "csv"
	BackendRedis = "redis"
)

// Config selects and configures the credential backend.
type Config struct {
	Backend string `env:"CREDENTIALS_BACKEND" envDefault:"csv"`
	CSVPath string `env:"CREDENTIALS_CSV_PATH" envDefault:"hotels.csv"`

	// CacheTTL keeps verified records in memory for this long (0 disables caching).
	CacheTTL  time.Duration `env:"CREDENTIALS_CACHE_TTL" envDefault:"0s"`
	CacheSize int           `env:"CREDENTIALS_CACHE_SIZE" envDefault:"1024"`

	RedisURL            string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisKey            string        `env:"REDIS_TENANTS_KEY" envDefault:"tabble:tenants"`
	RedisRetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RedisRetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`
	RedisConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"10s"`
}

func DefaultConfig() Config {
	return Config{
		Backend:             BackendCSV,
		CSVPath:             "hotels.csv",
		CacheSize:           defaultCacheSize,
		RedisURL:            "redis://localhost:6379/0",
		RedisKey:            DefaultRedisKey,
		RedisRetryAttempts:  3,
		RedisRetryInterval:  2 * time.Second,
		RedisConnectTimeout: defaultConnectTimeout,
	}
}

// NewFromConfig builds the Store selected by cfg.Backend. Callers should
// Close the store on shutdown.
func NewFromConfig(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	var src Source
	switch cfg.Backend {
	case "", BackendCSV:
		src = NewCSVSource(cfg.CSVPath)
	case BackendRedis:
		client, err := ConnectRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		src = NewRedisSource(client, cfg.RedisKey)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}

	if cfg.CacheTTL > 0 {
		src = NewCachedSource(src, cfg.CacheTTL, cfg.CacheSize)
	}
	return NewStore(src, opts...), nil
}
