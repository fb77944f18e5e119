package tenantdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pressly/goose/v3"
	"golang.org/x/sync/singleflight"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const sqliteFileSuffix = ".db"

// SQLiteFactory stores every tenant in its own SQLite file under a data directory.
type SQLiteFactory struct {
	cfg        Config
	log        *slog.Logger
	migrations singleflight.Group
}

// NewSQLiteFactory returns a factory rooted at cfg.DataDir.
func NewSQLiteFactory(cfg Config, opts ...Option) *SQLiteFactory {
	o := applyOptions(opts)
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	return &SQLiteFactory{
		cfg: cfg,
		log: o.logger.With(slog.String("component", "tenantdb"), slog.String("driver", DriverSQLite)),
	}
}

// Path maps a tenant name to its database file. Names without an extension
// get ".db" appended so that "north-branch" and "north-branch.db" resolve
// to the same file.
func (f *SQLiteFactory) Path(tenant string) (string, error) {
	if err := ValidateTenantName(tenant); err != nil {
		return "", err
	}
	name := tenant
	if !strings.HasSuffix(name, sqliteFileSuffix) {
		name += sqliteFileSuffix
	}
	return filepath.Join(f.cfg.DataDir, name), nil
}

// Open implements Factory.
func (f *SQLiteFactory) Open(ctx context.Context, tenant string) (*Conn, error) {
	path, err := f.Path(tenant)
	if err != nil {
		return nil, storageError(tenant, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, storageError(tenant, fmt.Errorf("create data dir: %w", err))
	}

	db, err := sql.Open(DriverSQLite, f.dsn(path))
	if err != nil {
		return nil, storageError(tenant, fmt.Errorf("open sqlite: %w", err))
	}
	f.configurePool(db)

	conn := NewConn(tenant, db)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout(f.cfg))
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, storageError(tenant, fmt.Errorf("ping sqlite: %w", err))
	}

	// Two sessions opening the same tenant at once would otherwise race on
	// creating the goose version table in the same file.
	_, err, _ = f.migrations.Do(path, func() (any, error) {
		return nil, migrate(ctx, goose.DialectSQLite3, "migrations/sqlite", db, f.log)
	})
	if err != nil {
		_ = conn.Close()
		return nil, storageError(tenant, err)
	}

	f.log.DebugContext(ctx, "tenant storage opened", slog.String("tenant", tenant), slog.String("path", path))
	return conn, nil
}

// Close implements Factory.
func (f *SQLiteFactory) Close(conn *Conn) error {
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close tenant %q: %w", conn.Tenant(), err)
	}
	return nil
}

func (f *SQLiteFactory) dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", f.cfg.BusyTimeout.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

func (f *SQLiteFactory) configurePool(db *sql.DB) {
	if f.cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(f.cfg.MaxOpenConns)
	}
	if f.cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(f.cfg.MaxIdleConns)
	}
	if f.cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(f.cfg.ConnMaxIdleTime)
	}
}
