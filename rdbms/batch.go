package rdbms

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Rejected is the sentinel update count used by ExecuteBatch for
// parameters the bind function declined to accept.
const Rejected int64 = -1

// Bind executes stmt for one parameter, returning whether it was
// accepted for execution. A false return (with a nil error) means the
// parameter was intentionally skipped (e.g. filtered by validation),
// not that an error occurred.
type Bind[P any] func(ctx context.Context, stmt *sqlx.Stmt, p P) (accepted bool, rowsAffected int64, err error)

// ExecuteBatch invokes bind for every element of params, using a
// single prepared statement. Every batchSize accepted parameters, the
// accumulated group is considered "flushed" (logged at debug level) -
// this is the observable batching boundary the spec calls for, though
// each bind call still executes its own round trip, since database/sql
// has no portable client-side batch-exec primitive. The returned slice
// has the same length and order as params: Rejected for parameters
// bind declined, and the update count otherwise.
func ExecuteBatch[P any](ctx context.Context, conn *Conn, ext Execer, query string, batchSize int, params []P, bind Bind[P]) ([]int64, error) {
	if batchSize <= 0 {
		batchSize = 1
	}

	stmt, err := ext.PreparexContext(ctx, query)
	if err != nil {
		return nil, wrap(err)
	}
	defer stmt.Close()

	results := make([]int64, len(params))
	accepted := 0

	for i, p := range params {
		ok, rows, err := bind(ctx, stmt, p)
		if err != nil {
			return nil, wrap(err)
		}
		if !ok {
			results[i] = Rejected
			continue
		}

		results[i] = rows
		accepted++

		if accepted%batchSize == 0 {
			conn.Log.WithField(`count`, batchSize).Debug(`rdbms: flushed batch`)
		}
	}

	return results, nil
}
