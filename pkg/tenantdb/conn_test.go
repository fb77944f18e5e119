package tenantdb_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tabble/pkg/tenantdb"
)

func newMockConn(t *testing.T) (*tenantdb.Conn, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return tenantdb.NewConn("north-branch", db), mock
}

func TestConn_WithTx(t *testing.T) {
	t.Parallel()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		t.Parallel()
		conn, mock := newMockConn(t)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE settings").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := conn.WithTx(context.Background(), func(tx *tenantdb.Tx) error {
			_, err := tx.Exec("UPDATE settings SET hotel_name = ?", "Tabble")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		t.Parallel()
		conn, mock := newMockConn(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := conn.WithTx(context.Background(), func(tx *tenantdb.Tx) error {
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		t.Parallel()
		conn, mock := newMockConn(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "kaboom", func() {
			_ = conn.WithTx(context.Background(), func(tx *tenantdb.Tx) error {
				panic("kaboom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports commit failure", func(t *testing.T) {
		t.Parallel()
		conn, mock := newMockConn(t)

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("disk full"))

		err := conn.WithTx(context.Background(), func(tx *tenantdb.Tx) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("refuses closed connection", func(t *testing.T) {
		t.Parallel()
		conn, mock := newMockConn(t)
		mock.ExpectClose()
		require.NoError(t, conn.Close())

		err := conn.WithTx(context.Background(), func(tx *tenantdb.Tx) error {
			t.Fatal("fn must not run on a closed connection")
			return nil
		})
		assert.ErrorIs(t, err, tenantdb.ErrConnClosed)
	})
}

func TestConn_WithConn(t *testing.T) {
	t.Parallel()

	conn, _ := newMockConn(t)

	called := false
	err := conn.WithConn(context.Background(), func(c *sql.Conn) error {
		called = true
		return c.PingContext(context.Background())
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestConn_Close(t *testing.T) {
	t.Parallel()

	t.Run("runs closers exactly once", func(t *testing.T) {
		t.Parallel()
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		mock.ExpectClose()

		calls := 0
		conn := tenantdb.NewConn("cafe-east", db, func() error {
			calls++
			return nil
		})

		require.NoError(t, conn.Close())
		require.NoError(t, conn.Close())
		assert.Equal(t, 1, calls)
		assert.True(t, conn.Closed())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tolerates missing pool", func(t *testing.T) {
		t.Parallel()
		conn := tenantdb.NewConn("cafe-east", nil)
		assert.NoError(t, conn.Close())

		var nilConn *tenantdb.Conn
		assert.NoError(t, nilConn.Close())
	})

	t.Run("joins closer errors", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		conn := tenantdb.NewConn("cafe-east", nil, func() error { return boom })
		assert.ErrorIs(t, conn.Close(), boom)
		assert.ErrorIs(t, conn.Close(), boom)
	})
}

func TestConn_Healthcheck(t *testing.T) {
	t.Parallel()

	conn, mock := newMockConn(t)
	require.NoError(t, conn.Healthcheck()(context.Background()))

	mock.ExpectClose()
	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Healthcheck()(context.Background()), tenantdb.ErrHealthcheckFailed)
}

func TestConn_Rebind(t *testing.T) {
	t.Parallel()

	conn := tenantdb.NewConn("cafe-east", nil)
	assert.Equal(t, "SELECT * FROM dishes WHERE id = ?", conn.Rebind("SELECT * FROM dishes WHERE id = ?"))
}
