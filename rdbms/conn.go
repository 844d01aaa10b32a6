package rdbms

import (
	"context"

	wardlog "github.com/anchorware/ward-log"
	"github.com/jmoiron/sqlx"
)

type (
	// Execer is the subset of *sqlx.DB and *sqlx.Tx this package
	// depends on, allowing callers of ExecuteAndReturn/ExecuteBatch/
	// ExecuteQueryWithInClause to pass either a plain connection or a
	// transaction.
	Execer interface {
		ExecContext(ctx context.Context, query string, args ...any) (sqlResult, error)
		QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
		PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
		PrepareNamedContext(ctx context.Context, query string) (*sqlx.NamedStmt, error)
		Rebind(query string) string
	}

	sqlResult interface {
		LastInsertId() (int64, error)
		RowsAffected() (int64, error)
	}

	// Conn is the top-level entrypoint into this package, wrapping a
	// *sqlx.DB plus an ambient logger for background/retry logging.
	Conn struct {
		DB  *sqlx.DB
		Log wardlog.Logger
	}
)

// New wraps db for use with this package's helpers. log may be nil.
func New(db *sqlx.DB, log wardlog.Logger) *Conn {
	if log == nil {
		log = wardlog.Discard{}
	}
	return &Conn{DB: db, Log: log}
}

// ExecuteAndReturn opens a connection-scoped execution of f. When
// autoCommit is true, f runs directly against the underlying *sqlx.DB
// (each statement commits itself). When false, f runs inside a
// transaction: the transaction commits on success, and rolls back -
// with the rollback error logged, never returned over the success
// path's error - if f returns an error or panics. All errors are
// wrapped as *RdbmsError.
func ExecuteAndReturn[T any](ctx context.Context, conn *Conn, autoCommit bool, f func(ctx context.Context, ext Execer) (T, error)) (result T, err error) {
	if autoCommit {
		v, ferr := f(ctx, dbExecer{conn.DB})
		if ferr != nil {
			return result, wrap(ferr)
		}
		return v, nil
	}

	tx, txErr := conn.DB.BeginTxx(ctx, nil)
	if txErr != nil {
		return result, wrap(txErr)
	}

	defer func() {
		if rec := recover(); rec != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				conn.Log.WithError(rbErr).Error(`rdbms: rollback after panic failed`)
			}
			panic(rec)
		}
	}()

	v, ferr := f(ctx, txExecer{tx})
	if ferr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			conn.Log.WithError(rbErr).Error(`rdbms: rollback failed`)
		}
		return result, wrap(ferr)
	}

	if cErr := tx.Commit(); cErr != nil {
		return result, wrap(cErr)
	}

	return v, nil
}

type dbExecer struct{ *sqlx.DB }

func (d dbExecer) ExecContext(ctx context.Context, query string, args ...any) (sqlResult, error) {
	return d.DB.ExecContext(ctx, query, args...)
}

type txExecer struct{ *sqlx.Tx }

func (t txExecer) ExecContext(ctx context.Context, query string, args ...any) (sqlResult, error) {
	return t.Tx.ExecContext(ctx, query, args...)
}
