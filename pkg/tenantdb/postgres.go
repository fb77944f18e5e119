package tenantdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"golang.org/x/sync/singleflight"
)

// duplicateDatabase is the SQLSTATE returned when CREATE DATABASE races with another creator.
const duplicateDatabase = "42P04"

// PostgresFactory keeps every tenant in its own database on one Postgres cluster.
// The cluster URL names a maintenance database used only to create tenant databases.
type PostgresFactory struct {
	cfg        Config
	log        *slog.Logger
	admin      *pgxpool.Pool
	migrations singleflight.Group
}

// NewPostgresFactory connects to the maintenance database named by cfg.PostgresURL.
func NewPostgresFactory(ctx context.Context, cfg Config, opts ...Option) (*PostgresFactory, error) {
	o := applyOptions(opts)
	if cfg.PostgresURL == "" {
		return nil, errors.Join(ErrStorageUnavailable, errors.New("empty postgres url, set TENANT_PG_URL"))
	}

	admin, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, errors.Join(ErrStorageUnavailable, err)
	}
	if err := admin.Ping(ctx); err != nil {
		admin.Close()
		return nil, errors.Join(ErrStorageUnavailable, err)
	}

	return &PostgresFactory{
		cfg:   cfg,
		log:   o.logger.With(slog.String("component", "tenantdb"), slog.String("driver", DriverPostgres)),
		admin: admin,
	}, nil
}

// DatabaseName maps a tenant name to the Postgres database holding it.
// A trailing ".db" left over from file-based tenant names is dropped.
func DatabaseName(tenant string) (string, error) {
	if err := ValidateTenantName(tenant); err != nil {
		return "", err
	}
	return strings.TrimSuffix(tenant, sqliteFileSuffix), nil
}

// Open implements Factory.
func (f *PostgresFactory) Open(ctx context.Context, tenant string) (*Conn, error) {
	dbName, err := DatabaseName(tenant)
	if err != nil {
		return nil, storageError(tenant, err)
	}

	if err := f.ensureDatabase(ctx, dbName); err != nil {
		return nil, storageError(tenant, err)
	}

	poolCfg, err := pgxpool.ParseConfig(f.cfg.PostgresURL)
	if err != nil {
		return nil, storageError(tenant, err)
	}
	poolCfg.ConnConfig.Database = dbName
	if f.cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(f.cfg.MaxOpenConns)
	}
	if f.cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = f.cfg.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, storageError(tenant, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	conn := NewConn(tenant, db, func() error {
		pool.Close()
		return nil
	}).withBindType(sqlx.DOLLAR)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout(f.cfg))
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		_ = conn.Close()
		return nil, storageError(tenant, err)
	}

	_, err, _ = f.migrations.Do(dbName, func() (any, error) {
		return nil, migrate(ctx, goose.DialectPostgres, "migrations/postgres", db, f.log)
	})
	if err != nil {
		_ = conn.Close()
		return nil, storageError(tenant, err)
	}

	f.log.DebugContext(ctx, "tenant storage opened", slog.String("tenant", tenant), slog.String("database", dbName))
	return conn, nil
}

// Close implements Factory.
func (f *PostgresFactory) Close(conn *Conn) error {
	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close tenant %q: %w", conn.Tenant(), err)
	}
	return nil
}

// Shutdown releases the maintenance pool.
func (f *PostgresFactory) Shutdown() {
	f.admin.Close()
}

func (f *PostgresFactory) ensureDatabase(ctx context.Context, dbName string) error {
	var exists bool
	err := f.admin.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("lookup database: %w", err)
	}
	if exists {
		return nil
	}

	_, err = f.admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize())
	var pgErr *pgconn.PgError
	if err != nil && !(errors.As(err, &pgErr) && pgErr.Code == duplicateDatabase) {
		return fmt.Errorf("create database: %w", err)
	}

	f.log.InfoContext(ctx, "tenant database created", slog.String("database", dbName))
	return nil
}
