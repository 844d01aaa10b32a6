package rdbms

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func openTestConn(t *testing.T) *Conn {
	t.Helper()
	db, err := sqlx.Open(`sqlite3`, `:memory:`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
	require.NoError(t, err)

	return New(db, nil)
}

func TestPartition(t *testing.T) {
	got := Partition([]int{1, 2, 3, 4, 5}, 2)
	require.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, got)

	require.Nil(t, Partition([]int(nil), 2))
}

func TestPartition_PanicsOnInvalidMaxSize(t *testing.T) {
	require.Panics(t, func() { Partition([]int{1}, 0) })
}

func TestExecuteAndReturn_Commit(t *testing.T) {
	conn := openTestConn(t)
	ctx := context.Background()

	_, err := ExecuteAndReturn(ctx, conn, false, func(ctx context.Context, ext Execer) (struct{}, error) {
		_, err := ext.ExecContext(ctx, `INSERT INTO widgets (id, name) VALUES (?, ?)`, 1, `alpha`)
		return struct{}{}, err
	})
	require.NoError(t, err)

	var name string
	require.NoError(t, conn.DB.Get(&name, `SELECT name FROM widgets WHERE id = ?`, 1))
	require.Equal(t, `alpha`, name)
}

func TestExecuteAndReturn_RollbackOnError(t *testing.T) {
	conn := openTestConn(t)
	ctx := context.Background()

	_, err := ExecuteAndReturn(ctx, conn, false, func(ctx context.Context, ext Execer) (struct{}, error) {
		if _, err := ext.ExecContext(ctx, `INSERT INTO widgets (id, name) VALUES (?, ?)`, 2, `beta`); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, assertErr
	})
	require.Error(t, err)
	var rdbmsErr *RdbmsError
	require.ErrorAs(t, err, &rdbmsErr)

	var count int
	require.NoError(t, conn.DB.Get(&count, `SELECT count(*) FROM widgets WHERE id = ?`, 2))
	require.Equal(t, 0, count)
}

var assertErr = errTest(`forced failure`)

type errTest string

func (e errTest) Error() string { return string(e) }

func TestExecuteBatch(t *testing.T) {
	conn := openTestConn(t)
	ctx := context.Background()

	type row struct {
		id   int
		name string
	}
	params := []row{
		{1, `a`},
		{2, ``}, // rejected: empty name
		{3, `c`},
		{4, `d`},
	}

	results, err := ExecuteAndReturn(ctx, conn, false, func(ctx context.Context, ext Execer) ([]int64, error) {
		return ExecuteBatch(ctx, conn, ext, `INSERT INTO widgets (id, name) VALUES (?, ?)`, 2, params, func(ctx context.Context, stmt *sqlx.Stmt, p row) (bool, int64, error) {
			if p.name == `` {
				return false, 0, nil
			}
			res, err := stmt.ExecContext(ctx, p.id, p.name)
			if err != nil {
				return false, 0, err
			}
			n, err := res.RowsAffected()
			return true, n, err
		})
	})
	require.NoError(t, err)
	require.Equal(t, []int64{1, Rejected, 1, 1}, results)

	var count int
	require.NoError(t, conn.DB.Get(&count, `SELECT count(*) FROM widgets`))
	require.Equal(t, 3, count)
}

func TestExecuteQueryWithInClause(t *testing.T) {
	conn := openTestConn(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := conn.DB.Exec(`INSERT INTO widgets (id, name) VALUES (?, ?)`, i, `w`)
		require.NoError(t, err)
	}

	ids := []int{1, 2, 3, 4, 5}
	names, err := ExecuteQueryWithInClause(ctx, dbExecer{conn.DB}, 2, ids,
		func(placeholders string) string {
			return `SELECT name FROM widgets WHERE id IN (` + placeholders + `)`
		},
		func(id int) any { return id },
		func(rows *sqlx.Rows) (string, error) {
			var name string
			err := rows.Scan(&name)
			return name, err
		},
	)
	require.NoError(t, err)
	require.Len(t, names, 5)
}
