package registry

import (
	"context"
	"database/sql"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/tabble/pkg/logger"
	"github.com/dmitrymomot/tabble/pkg/tenantdb"
)

// entry is the per-session slot. mu serializes every operation on the
// session; conn and lastUsed may be read without it.
type entry struct {
	mu       sync.Mutex
	conn     atomic.Pointer[tenantdb.Conn]
	lastUsed atomic.Int64

	// dead is set once the entry has been removed from the map. Guarded by mu.
	dead bool
}

func (e *entry) touch(now time.Time) {
	e.lastUsed.Store(now.UnixNano())
}

// Registry binds client sessions to tenant connections. Each session holds
// at most one open connection at a time. Operations on one session are
// serialized; different sessions never wait on each other beyond a short
// map lookup.
type Registry struct {
	factory         tenantdb.Factory
	defaultTenant   string
	idleTimeout     time.Duration
	cleanupInterval time.Duration
	logger          *slog.Logger
	metrics         *metrics
	now             func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New creates a registry that opens connections through factory.
// Idle expiry is disabled unless WithConfig or WithIdleTimeout enable it.
func New(factory tenantdb.Factory, opts ...Option) *Registry {
	if factory == nil {
		panic("registry: tenant factory is required")
	}

	r := &Registry{
		factory:       factory,
		defaultTenant: DefaultTenant,
		logger:        slog.New(slog.DiscardHandler),
		metrics:       newMetrics(),
		now:           time.Now,
		entries:       make(map[string]*entry),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("session_registry"))

	if r.idleTimeout > 0 && r.cleanupInterval > 0 {
		go r.reapLoop()
	} else {
		close(r.done)
	}
	return r
}

// DefaultTenant returns the tenant bound to sessions that did not choose one.
func (r *Registry) DefaultTenant() string {
	return r.defaultTenant
}

// GetOrCreate returns the session's connection, opening one when needed.
//
// An empty tenant means "whatever the session is bound to", falling back to
// the default tenant for new sessions. A non-empty tenant that differs from
// the current binding rebinds the session: the new connection is opened
// first and the old one is disposed only after that succeeded, so a failed
// open leaves the previous binding usable.
//
// Concurrent calls for the same session are serialized and observe a single
// connection.
func (r *Registry) GetOrCreate(ctx context.Context, sessionID, tenant string) (*tenantdb.Conn, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	e, err := r.lock(sessionID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	return r.bind(ctx, sessionID, e, tenant)
}

// Switch rebinds the session to tenant. It reports true once the session is
// bound to tenant; on failure the previous binding is left unchanged.
// Switching to the tenant the session already uses is a no-op.
func (r *Registry) Switch(ctx context.Context, sessionID, tenant string) (bool, error) {
	if tenant == "" {
		return false, ErrEmptyTenant
	}
	if _, err := r.GetOrCreate(ctx, sessionID, tenant); err != nil {
		return false, err
	}
	return true, nil
}

// CurrentTenant returns the tenant the session is bound to, or the default
// tenant when the session has no connection.
func (r *Registry) CurrentTenant(sessionID string) string {
	tenant, _ := r.Lookup(sessionID)
	return tenant
}

// Lookup is CurrentTenant that also reports whether the session actually
// holds a connection.
func (r *Registry) Lookup(sessionID string) (tenant string, bound bool) {
	r.mu.RLock()
	e, ok := r.entries[sessionID]
	r.mu.RUnlock()
	if !ok {
		return r.defaultTenant, false
	}
	conn := e.conn.Load()
	if conn == nil {
		return r.defaultTenant, false
	}
	return conn.Tenant(), true
}

// Cleanup disposes the session's connection and forgets the session. It is
// a no-op for unknown sessions. The returned error comes from closing the
// connection; the session is forgotten either way.
func (r *Registry) Cleanup(ctx context.Context, sessionID string) error {
	r.mu.RLock()
	e, ok := r.entries[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return nil
	}
	return r.evict(ctx, sessionID, e)
}

// WithTx borrows the session's connection for one transaction. The session
// is bound to the default tenant first when it has no connection yet.
func (r *Registry) WithTx(ctx context.Context, sessionID string, fn func(tx *tenantdb.Tx) error) error {
	conn, err := r.GetOrCreate(ctx, sessionID, "")
	if err != nil {
		return err
	}
	return conn.WithTx(ctx, fn)
}

// WithConn borrows a single pooled connection of the session's tenant.
func (r *Registry) WithConn(ctx context.Context, sessionID string, fn func(conn *sql.Conn) error) error {
	conn, err := r.GetOrCreate(ctx, sessionID, "")
	if err != nil {
		return err
	}
	return conn.WithConn(ctx, fn)
}

// Sessions returns the number of sessions holding a connection.
func (r *Registry) Sessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if e.conn.Load() != nil {
			n++
		}
	}
	return n
}

// ReapIdle disposes sessions that have not been used for longer than the
// idle timeout and returns how many were removed.
func (r *Registry) ReapIdle(ctx context.Context) int {
	if r.idleTimeout <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idleTimeout).UnixNano()

	r.mu.RLock()
	idle := make(map[string]*entry)
	for id, e := range r.entries {
		if e.lastUsed.Load() < cutoff {
			idle[id] = e
		}
	}
	r.mu.RUnlock()

	reaped := 0
	for id, e := range idle {
		e.mu.Lock()
		// Re-check under the entry lock; the session may have been used or
		// removed since the snapshot.
		if !e.dead && e.lastUsed.Load() < cutoff {
			_ = r.evict(ctx, id, e)
			r.metrics.Expired.Inc()
			reaped++
		}
		e.mu.Unlock()
	}

	if reaped > 0 {
		r.logger.DebugContext(ctx, "idle sessions disposed", slog.Int("count", reaped))
	}
	return reaped
}

// Healthcheck returns a readiness probe that fails once the registry is closed.
func (r *Registry) Healthcheck() func(context.Context) error {
	return func(context.Context) error {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.closed {
			return ErrRegistryClosed
		}
		return nil
	}
}

// Close stops the idle reaper and disposes every connection. Further calls
// to GetOrCreate and Switch fail with ErrRegistryClosed.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		entries := maps.Clone(r.entries)
		r.mu.Unlock()

		close(r.stop)
		<-r.done

		var g errgroup.Group
		for id, e := range entries {
			g.Go(func() error {
				e.mu.Lock()
				defer e.mu.Unlock()
				if e.dead {
					return nil
				}
				return r.evict(context.Background(), id, e)
			})
		}
		r.closeErr = g.Wait()
	})
	return r.closeErr
}

// lock returns the session's entry with its mutex held, creating the entry
// when missing. Entries removed while waiting for the mutex are skipped.
func (r *Registry) lock(sessionID string) (*entry, error) {
	for {
		r.mu.RLock()
		if r.closed {
			r.mu.RUnlock()
			return nil, ErrRegistryClosed
		}
		e, ok := r.entries[sessionID]
		r.mu.RUnlock()

		if !ok {
			r.mu.Lock()
			if r.closed {
				r.mu.Unlock()
				return nil, ErrRegistryClosed
			}
			if e, ok = r.entries[sessionID]; !ok {
				e = &entry{}
				e.touch(r.now())
				r.entries[sessionID] = e
			}
			r.mu.Unlock()
		}

		e.mu.Lock()
		if !e.dead {
			return e, nil
		}
		e.mu.Unlock()
	}
}

// bind makes e hold a connection for tenant. Must be called with e.mu held.
func (r *Registry) bind(ctx context.Context, sessionID string, e *entry, tenant string) (*tenantdb.Conn, error) {
	current := e.conn.Load()

	switch {
	case current == nil:
		if tenant == "" {
			tenant = r.defaultTenant
		}
		conn, err := r.open(ctx, sessionID, tenant)
		if err != nil {
			r.forget(sessionID, e)
			return nil, err
		}
		e.conn.Store(conn)
		r.metrics.Active.Inc()
		r.logger.DebugContext(ctx, "session bound", logger.SessionID(sessionID), logger.Tenant(tenant))

	case tenant != "" && tenant != current.Tenant():
		conn, err := r.open(ctx, sessionID, tenant)
		if err != nil {
			return nil, err
		}
		e.conn.Store(conn)
		_ = r.dispose(ctx, sessionID, current)
		r.metrics.Switches.Inc()
		r.logger.InfoContext(ctx, "session switched tenant",
			logger.SessionID(sessionID),
			logger.PreviousTenant(current.Tenant()),
			logger.Tenant(tenant),
		)
	}

	e.touch(r.now())
	return e.conn.Load(), nil
}

// evict removes the session and disposes its connection. Must be called
// with e.mu held.
func (r *Registry) evict(ctx context.Context, sessionID string, e *entry) error {
	r.forget(sessionID, e)

	conn := e.conn.Swap(nil)
	if conn == nil {
		return nil
	}
	r.metrics.Active.Dec()
	return r.dispose(ctx, sessionID, conn)
}

// forget marks e dead and drops it from the map. Must be called with e.mu held.
func (r *Registry) forget(sessionID string, e *entry) {
	e.dead = true

	r.mu.Lock()
	if r.entries[sessionID] == e {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()
}

func (r *Registry) open(ctx context.Context, sessionID, tenant string) (*tenantdb.Conn, error) {
	start := r.now()
	conn, err := r.factory.Open(ctx, tenant)
	if err != nil {
		r.metrics.OpenFailures.Inc()
		r.logger.ErrorContext(ctx, "failed to open tenant connection",
			logger.SessionID(sessionID),
			logger.Tenant(tenant),
			logger.Error(err),
		)
		return nil, err
	}
	r.metrics.Opens.Inc()
	r.logger.DebugContext(ctx, "tenant connection opened",
		logger.SessionID(sessionID),
		logger.Tenant(tenant),
		logger.Duration(r.now().Sub(start)),
	)
	return conn, nil
}

func (r *Registry) dispose(ctx context.Context, sessionID string, conn *tenantdb.Conn) error {
	err := r.factory.Close(conn)
	r.metrics.Closes.Inc()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close tenant connection",
			logger.SessionID(sessionID),
			logger.Tenant(conn.Tenant()),
			logger.Error(err),
		)
	}
	return err
}

func (r *Registry) reapLoop() {
	defer close(r.done)

	ticker := time.NewTicker(r.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.ReapIdle(context.Background())
		case <-r.stop:
			return
		}
	}
}
