package credentials

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding tenant secrets, one field per tenant.
const DefaultRedisKey = "tabble:tenants"

// RedisSource reads records from a Redis hash.
type RedisSource struct {
	client redis.UniversalClient
	key    string
}

func NewRedisSource(client redis.UniversalClient, key string) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{client: client, key: key}
}

func (s *RedisSource) Lookup(ctx context.Context, tenant string) (Record, error) {
	secret, err := s.client.HGet(ctx, s.key, tenant).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, fmt.Errorf("%w: %q", ErrTenantNotFound, tenant)
	}
	if err != nil {
		return Record{}, errors.Join(ErrStoreUnavailable, err)
	}
	return Record{Tenant: tenant, Secret: secret}, nil
}

func (s *RedisSource) List(ctx context.Context) ([]string, error) {
	names, err := s.client.HKeys(ctx, s.key).Result()
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	slices.Sort(names)
	return names, nil
}

// Put stores or replaces the secret of tenant.
func (s *RedisSource) Put(ctx context.Context, rec Record) error {
	if err := s.client.HSet(ctx, s.key, rec.Tenant, rec.Secret).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisSource) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisSource) Close() error {
	return s.client.Close()
}

const defaultConnectTimeout = 10 * time.Second

// ConnectRedis parses cfg.RedisURL and pings the server, retrying up to
// cfg.RedisRetryAttempts times within cfg.RedisConnectTimeout. A zero
// timeout means the 10s default.
func ConnectRedis(ctx context.Context, cfg Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, fmt.Errorf("parse redis url: %w", err))
	}

	timeout := cfg.RedisConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempts := max(cfg.RedisRetryAttempts, 1)
	var lastErr error
	for attempt := range attempts {
		client := redis.NewClient(opt)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrStoreUnavailable, ctx.Err())
		case <-time.After(cfg.RedisRetryInterval):
		}
	}
	return nil, errors.Join(ErrStoreUnavailable, lastErr)
}
