package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTemples(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:dbx_temples?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS temples (id TEXT PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`DELETE FROM temples`)
	require.NoError(t, err)
	return db
}

func templeCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM temples`).Scan(&n))
	return n
}

func insertTemple(ctx context.Context, tx DBTX, id string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO temples (id, name) VALUES (?, ?)`, id, "Sri Temple "+id)
	return err
}

func TestWithTx_Commit(t *testing.T) {
	db := openTemples(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		if err := insertTemple(ctx, tx, "t1"); err != nil {
			return err
		}
		return insertTemple(ctx, tx, "t2")
	})
	require.NoError(t, err)
	require.Equal(t, 2, templeCount(t, db))
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := openTemples(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, insertTemple(ctx, tx, "t1"))
		return errors.New("status update failed")
	})
	require.EqualError(t, err, "status update failed")
	require.Zero(t, templeCount(t, db))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := openTemples(t)

	require.PanicsWithValue(t, "boom", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insertTemple(ctx, tx, "t1"))
			panic("boom")
		})
	})
	require.Zero(t, templeCount(t, db))
}

func TestWithTx_BeginAndCommitErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)
	err = WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		t.Fatal("fn must not run without a transaction")
		return nil
	})
	require.ErrorIs(t, err, sql.ErrConnDone)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(sql.ErrTxDone)
	err = WithTx(context.Background(), db, nil, func(context.Context, DBTX) error { return nil })
	require.ErrorIs(t, err, sql.ErrTxDone)
	require.NoError(t, mock.ExpectationsWereMet())
}
