package tenantdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationsFS embed.FS

// migrate brings the tenant schema up to date. Migrations only create
// missing structures, so running them against an existing tenant is safe.
func migrate(ctx context.Context, dialect goose.Dialect, dir string, db *sql.DB, log *slog.Logger) error {
	fsys, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Join(ErrFailedToApplyMigrations, err)
	}

	if len(results) > 0 {
		log.InfoContext(ctx, "tenant migrations applied", slog.Int("count", len(results)))
	}
	return nil
}
