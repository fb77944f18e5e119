package credentials_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tabble/pkg/credentials"
)

type countingSource struct {
	mu      sync.Mutex
	records map[string]string
	lookups int
	lists   int
	err     error
}

func (s *countingSource) Lookup(_ context.Context, tenant string) (credentials.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.err != nil {
		return credentials.Record{}, s.err
	}
	secret, ok := s.records[tenant]
	if !ok {
		return credentials.Record{}, credentials.ErrTenantNotFound
	}
	return credentials.Record{Tenant: tenant, Secret: secret}, nil
}

func (s *countingSource) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.err != nil {
		return nil, s.err
	}
	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	return names, nil
}

func (s *countingSource) counts() (lookups, lists int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups, s.lists
}

func TestCachedSource(t *testing.T) {
	t.Parallel()

	t.Run("serves hits from memory", func(t *testing.T) {
		t.Parallel()
		src := &countingSource{records: map[string]string{"north-branch": "north123"}}
		c := credentials.NewCachedSource(src, time.Minute, 0)
		ctx := context.Background()

		for range 3 {
			rec, err := c.Lookup(ctx, "north-branch")
			require.NoError(t, err)
			assert.Equal(t, "north123", rec.Secret)

			names, err := c.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"north-branch"}, names)
		}

		lookups, lists := src.counts()
		assert.Equal(t, 1, lookups)
		assert.Equal(t, 1, lists)
	})

	t.Run("misses and failures are not cached", func(t *testing.T) {
		t.Parallel()
		src := &countingSource{records: map[string]string{}}
		c := credentials.NewCachedSource(src, time.Minute, 0)
		ctx := context.Background()

		_, err := c.Lookup(ctx, "harbor")
		assert.ErrorIs(t, err, credentials.ErrTenantNotFound)
		_, err = c.Lookup(ctx, "harbor")
		assert.ErrorIs(t, err, credentials.ErrTenantNotFound)

		src.mu.Lock()
		src.err = errors.Join(credentials.ErrStoreUnavailable, errors.New("down"))
		src.mu.Unlock()
		_, err = c.List(ctx)
		assert.ErrorIs(t, err, credentials.ErrStoreUnavailable)
		_, err = c.List(ctx)
		assert.ErrorIs(t, err, credentials.ErrStoreUnavailable)

		lookups, lists := src.counts()
		assert.Equal(t, 2, lookups)
		assert.Equal(t, 2, lists)
	})

	t.Run("entries expire", func(t *testing.T) {
		t.Parallel()
		src := &countingSource{records: map[string]string{"north-branch": "north123"}}
		c := credentials.NewCachedSource(src, 20*time.Millisecond, 0)
		ctx := context.Background()

		_, err := c.Lookup(ctx, "north-branch")
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			_, _ = c.Lookup(ctx, "north-branch")
			lookups, _ := src.counts()
			return lookups >= 2
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("invalidate", func(t *testing.T) {
		t.Parallel()
		src := &countingSource{records: map[string]string{"north-branch": "north123"}}
		c := credentials.NewCachedSource(src, time.Minute, 0)
		ctx := context.Background()

		_, err := c.Lookup(ctx, "north-branch")
		require.NoError(t, err)
		c.Invalidate()
		_, err = c.Lookup(ctx, "north-branch")
		require.NoError(t, err)

		lookups, _ := src.counts()
		assert.Equal(t, 2, lookups)
	})

	t.Run("ping reaches the source", func(t *testing.T) {
		t.Parallel()
		src := &countingSource{records: map[string]string{}}
		c := credentials.NewCachedSource(src, time.Minute, 0)

		require.NoError(t, c.Ping(context.Background()))
		require.NoError(t, c.Ping(context.Background()))
		_, lists := src.counts()
		assert.Equal(t, 2, lists)
		assert.NoError(t, c.Close())
	})
}
