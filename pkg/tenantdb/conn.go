package tenantdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
)

// Conn is a live handle to one tenant's storage: a goroutine-safe connection
// pool plus scoped access to transactions and single connections on it.
// A Conn is owned by whoever opened it; borrowers use WithTx or WithConn and
// never close it themselves.
type Conn struct {
	tenant  string
	db      *sql.DB
	bind    int
	closers []func() error

	once     sync.Once
	closed   atomic.Bool
	closeErr error
}

// NewConn wraps an opened pool for the given tenant. Extra closers run after
// the pool is closed, in order.
func NewConn(tenant string, db *sql.DB, closers ...func() error) *Conn {
	return &Conn{
		tenant:  tenant,
		db:      db,
		bind:    sqlx.QUESTION,
		closers: closers,
	}
}

// withBindType sets the placeholder style used by Rebind.
func (c *Conn) withBindType(bind int) *Conn {
	c.bind = bind
	return c
}

// Tenant returns the tenant name this connection is bound to.
func (c *Conn) Tenant() string {
	return c.tenant
}

// DB exposes the underlying pool for callers that manage their own statements.
func (c *Conn) DB() *sql.DB {
	return c.db
}

// Rebind converts a query written with '?' placeholders into the
// placeholder style of the tenant's driver.
func (c *Conn) Rebind(query string) string {
	return sqlx.Rebind(c.bind, query)
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// Close releases the pool and any associated resources. Only the first call
// does any work; later calls return the first call's result.
func (c *Conn) Close() error {
	if c == nil {
		return nil
	}
	c.once.Do(func() {
		c.closed.Store(true)
		var errs []error
		if c.db != nil {
			if err := c.db.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		for _, closer := range c.closers {
			if closer == nil {
				continue
			}
			if err := closer(); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back when fn returns an error or panics.
func (c *Conn) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	if c.Closed() || c.db == nil {
		return ErrConnClosed
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction on %q: %w", c.tenant, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, rbErr)
			}
		}
	}()

	if err = fn(&Tx{Tx: tx, bind: c.bind}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction on %q: %w", c.tenant, err)
	}
	return nil
}

// WithConn borrows a single pooled connection for the duration of fn and
// always returns it to the pool.
func (c *Conn) WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	if c.Closed() || c.db == nil {
		return ErrConnClosed
	}

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection on %q: %w", c.tenant, err)
	}
	defer conn.Close()

	return fn(conn)
}

// Healthcheck returns a closure suitable for readiness probes.
func (c *Conn) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		if c.Closed() || c.db == nil {
			return errors.Join(ErrHealthcheckFailed, ErrConnClosed)
		}
		if err := c.db.PingContext(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
