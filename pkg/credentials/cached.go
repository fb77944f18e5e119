package credentials

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCacheSize = 1024

// CachedSource keeps looked-up records and the tenant list in memory for a
// limited time. Misses and store failures are never cached.
type CachedSource struct {
	src     Source
	records *expirable.LRU[string, Record]
	lists   *expirable.LRU[struct{}, []string]
}

// NewCachedSource caches src for ttl. A non-positive size uses a default.
func NewCachedSource(src Source, ttl time.Duration, size int) *CachedSource {
	if size <= 0 {
		size = defaultCacheSize
	}
	return &CachedSource{
		src:     src,
		records: expirable.NewLRU[string, Record](size, nil, ttl),
		lists:   expirable.NewLRU[struct{}, []string](1, nil, ttl),
	}
}

func (c *CachedSource) Lookup(ctx context.Context, tenant string) (Record, error) {
	if rec, ok := c.records.Get(tenant); ok {
		return rec, nil
	}
	rec, err := c.src.Lookup(ctx, tenant)
	if err != nil {
		return Record{}, err
	}
	c.records.Add(tenant, rec)
	return rec, nil
}

func (c *CachedSource) List(ctx context.Context) ([]string, error) {
	if names, ok := c.lists.Get(struct{}{}); ok {
		return append([]string(nil), names...), nil
	}
	names, err := c.src.List(ctx)
	if err != nil {
		return nil, err
	}
	c.lists.Add(struct{}{}, append([]string(nil), names...))
	return names, nil
}

// Invalidate drops everything cached so the next call reaches the source.
func (c *CachedSource) Invalidate() {
	c.records.Purge()
	c.lists.Purge()
}

// Ping always reaches the underlying source.
func (c *CachedSource) Ping(ctx context.Context) error {
	return ping(ctx, c.src)
}

func (c *CachedSource) Close() error {
	return closeSource(c.src)
}
