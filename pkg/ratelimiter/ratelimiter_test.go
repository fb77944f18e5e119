package ratelimiter_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tabble/pkg/ratelimiter"
	"github.com/dmitrymomot/tabble/pkg/response"
	"github.com/dmitrymomot/tabble/pkg/sessionid"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var cfg = ratelimiter.Config{Capacity: 3, RefillRate: 1, RefillInterval: 10 * time.Second}

func newBucket(t *testing.T, c *clock) (*ratelimiter.Bucket, *ratelimiter.MemoryStore) {
	t.Helper()
	store := ratelimiter.NewMemoryStore(ratelimiter.WithClock(c.Now), ratelimiter.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	b, err := ratelimiter.NewBucket(store, cfg)
	require.NoError(t, err)
	return b, store
}

func TestNewBucket_InvalidConfig(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	for name, c := range map[string]ratelimiter.Config{
		"capacity": {Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		"rate":     {Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		"interval": {Capacity: 1, RefillRate: 1},
	} {
		_, err := ratelimiter.NewBucket(store, c)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig, name)
	}
	assert.False(t, ratelimiter.Config{}.Enabled())
	assert.True(t, cfg.Enabled())
}

func TestBucket_Allow(t *testing.T) {
	t.Parallel()
	c := newClock()
	b, _ := newBucket(t, c)
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		res, err := b.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed())
		assert.Equal(t, want, res.Remaining)
		assert.Equal(t, 3, res.Limit)
	}

	res, err := b.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Equal(t, 10*time.Second, res.RetryAfter(c.Now()))

	// Other keys have their own bucket.
	res, err = b.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed())

	// One interval refills one token, denials did not consume any.
	c.Advance(10 * time.Second)
	res, err = b.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 0, res.Remaining)

	// A long pause refills up to capacity only.
	c.Advance(time.Hour)
	res, err = b.AllowN(ctx, "10.0.0.1", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)

	_, err = b.AllowN(ctx, "10.0.0.1", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

func TestBucket_PartialIntervalCarriesOver(t *testing.T) {
	t.Parallel()
	c := newClock()
	b, _ := newBucket(t, c)
	ctx := context.Background()

	_, err := b.AllowN(ctx, "k", 3)
	require.NoError(t, err)

	c.Advance(19 * time.Second)
	res, err := b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)

	// The 9s left over from the first refill count toward the next token.
	c.Advance(time.Second)
	res, err = b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 0, res.Remaining)

	res, err = b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Equal(t, 10*time.Second, res.RetryAfter(c.Now()))
}

func TestBucket_Reset(t *testing.T) {
	t.Parallel()
	b, store := newBucket(t, newClock())
	ctx := context.Background()

	_, err := b.AllowN(ctx, "k", 3)
	require.NoError(t, err)
	require.NoError(t, b.Reset(ctx, "k"))
	assert.Zero(t, store.Len())

	res, err := b.Allow(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

func TestMemoryStore_Sweep(t *testing.T) {
	t.Parallel()
	c := newClock()
	store := ratelimiter.NewMemoryStore(
		ratelimiter.WithClock(c.Now),
		ratelimiter.WithCleanupInterval(0),
		ratelimiter.WithStaleAfter(time.Minute),
	)
	defer store.Close()
	ctx := context.Background()

	_, _, err := store.ConsumeTokens(ctx, "old", 1, cfg)
	require.NoError(t, err)
	c.Advance(2 * time.Minute)
	_, _, err = store.ConsumeTokens(ctx, "fresh", 1, cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
	assert.NoError(t, store.Close())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	t.Parallel()
	b, _ := newBucket(t, newClock())

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := b.Allow(context.Background(), "shared")
			if err == nil && res.Allowed() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(3), allowed.Load())
}

func TestComposite(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	r = r.WithContext(sessionid.WithContext(r.Context(), "s1"))

	assert.Equal(t, "192.0.2.7", ratelimiter.ByRemoteIP(r))
	assert.Equal(t, "s1", ratelimiter.BySession(r))
	assert.Equal(t, "192.0.2.7:s1", ratelimiter.Composite(ratelimiter.ByRemoteIP, ratelimiter.BySession)(r))

	long := func(*http.Request) string { return strings.Repeat("x", 100) }
	key := ratelimiter.Composite(long, ratelimiter.BySession)(r)
	assert.LessOrEqual(t, len(key), 64)
	assert.Equal(t, key, ratelimiter.Composite(long, ratelimiter.BySession)(r))

	r.RemoteAddr = "192.0.2.8"
	assert.Equal(t, "192.0.2.8", ratelimiter.ByRemoteIP(r))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimiter.Result, error) {
	return ratelimiter.Result{}, errors.New("store down")
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	serve := func(h http.Handler) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/settings/switch-database", nil)
		r.RemoteAddr = "198.51.100.1:1234"
		h.ServeHTTP(rec, r)
		return rec
	}

	t.Run("denies after the burst", func(t *testing.T) {
		t.Parallel()
		b, _ := newBucket(t, newClock())
		h := ratelimiter.Middleware(b, ratelimiter.ByRemoteIP, nil)(ok)

		for range 3 {
			rec := serve(h)
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		}

		rec := serve(h)
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))

		var body response.ErrorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "too_many_requests", body.Error.Code)
	})

	t.Run("empty key skips limiting", func(t *testing.T) {
		t.Parallel()
		b, _ := newBucket(t, newClock())
		h := ratelimiter.Middleware(b, func(*http.Request) string { return "" }, nil)(ok)
		for range 5 {
			assert.Equal(t, http.StatusOK, serve(h).Code)
		}
	})

	t.Run("limiter failure lets the request through", func(t *testing.T) {
		t.Parallel()
		h := ratelimiter.Middleware(failingLimiter{}, ratelimiter.ByRemoteIP, nil)(ok)
		assert.Equal(t, http.StatusOK, serve(h).Code)
	})
}
