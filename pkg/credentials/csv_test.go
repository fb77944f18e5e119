package credentials_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tabble/pkg/credentials"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hotels.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseCSV(t *testing.T) {
	t.Parallel()

	t.Run("reads records", func(t *testing.T) {
		t.Parallel()
		records, err := credentials.ParseCSV(strings.NewReader(
			"hotel_database,password\ntabble_new.db,secret\n north-branch , north123\n,orphan\nnorth-branch,dup\n",
		))
		require.NoError(t, err)
		assert.Equal(t, []credentials.Record{
			{Tenant: "tabble_new.db", Secret: "secret"},
			{Tenant: "north-branch", Secret: "north123"},
		}, records)
	})

	t.Run("columns in any order with bom", func(t *testing.T) {
		t.Parallel()
		records, err := credentials.ParseCSV(strings.NewReader("\ufeffpassword,hotel_database\nx1,cafe-east\n"))
		require.NoError(t, err)
		assert.Equal(t, []credentials.Record{{Tenant: "cafe-east", Secret: "x1"}}, records)
	})

	t.Run("missing columns", func(t *testing.T) {
		t.Parallel()
		_, err := credentials.ParseCSV(strings.NewReader("name,secret\na,b\n"))
		assert.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		_, err := credentials.ParseCSV(strings.NewReader(""))
		assert.Error(t, err)
	})
}

func TestCSVSource(t *testing.T) {
	t.Parallel()

	t.Run("lookup and list", func(t *testing.T) {
		t.Parallel()
		src := credentials.NewCSVSource(writeCSV(t, "hotel_database,password\ntabble_new.db,secret\nnorth-branch,north123\n"))
		ctx := context.Background()

		rec, err := src.Lookup(ctx, "north-branch")
		require.NoError(t, err)
		assert.Equal(t, "north123", rec.Secret)

		_, err = src.Lookup(ctx, "harbor")
		assert.ErrorIs(t, err, credentials.ErrTenantNotFound)

		names, err := src.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"tabble_new.db", "north-branch"}, names)
	})

	t.Run("picks up file edits", func(t *testing.T) {
		t.Parallel()
		path := writeCSV(t, "hotel_database,password\nnorth-branch,north123\n")
		src := credentials.NewCSVSource(path)
		ctx := context.Background()

		_, err := src.Lookup(ctx, "cafe-east")
		require.ErrorIs(t, err, credentials.ErrTenantNotFound)

		require.NoError(t, os.WriteFile(path, []byte("hotel_database,password\nnorth-branch,north123\ncafe-east,east1\n"), 0o600))

		rec, err := src.Lookup(ctx, "cafe-east")
		require.NoError(t, err)
		assert.Equal(t, "east1", rec.Secret)
	})

	t.Run("missing file is unavailable", func(t *testing.T) {
		t.Parallel()
		src := credentials.NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"))

		_, err := src.Lookup(context.Background(), "north-branch")
		assert.ErrorIs(t, err, credentials.ErrStoreUnavailable)
		_, err = src.List(context.Background())
		assert.ErrorIs(t, err, credentials.ErrStoreUnavailable)
	})

	t.Run("malformed file is unavailable", func(t *testing.T) {
		t.Parallel()
		src := credentials.NewCSVSource(writeCSV(t, "tenant;secret\n"))

		_, err := src.List(context.Background())
		assert.ErrorIs(t, err, credentials.ErrStoreUnavailable)
	})
}
