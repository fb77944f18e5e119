// Package tenantdb opens and disposes per-tenant database connections.
//
// Every tenant ("hotel") owns an isolated database. A Factory maps a tenant
// name to its storage location, makes sure the location exists, opens a
// goroutine-safe connection pool on it and brings the tenant schema up to
// date before handing back a *Conn. Two factories are provided:
//
//   - SQLiteFactory keeps one SQLite file per tenant under a data directory,
//     using the pure-Go modernc.org/sqlite driver with WAL and a busy
//     timeout so the pool can be shared by concurrent requests.
//   - PostgresFactory keeps one database per tenant on a Postgres cluster,
//     creating it on first use, and talks to it through pgxpool.
//
// Schema creation is handled by goose migrations embedded in the binary.
// They only create missing tables and indexes, so opening an existing
// tenant never destroys data.
//
// # Borrowing
//
// A *Conn is owned by whoever opened it. Code that needs storage borrows
// from it and the borrow is always released, even on error or panic:
//
//	err := conn.WithTx(ctx, func(tx *tenantdb.Tx) error {
//		_, err := tx.ExecContext(ctx, "UPDATE settings SET hotel_name = ?", name)
//		return err
//	})
//
// # Errors
//
// Open failures are reported as ErrStorageUnavailable joined with the cause,
// so callers can classify them with errors.Is regardless of the driver.
package tenantdb
