package rdbms

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Partition splits list into sublists of at most maxSize elements
// each, preserving order. maxSize must be > 0. The returned sublists
// are independent (no shared backing array across partitions is
// required by callers, but this implementation does slice the
// original backing array for efficiency - callers must not mutate the
// input list while holding onto the result).
func Partition[T any](list []T, maxSize int) [][]T {
	if maxSize <= 0 {
		panic(fmt.Sprintf(`rdbms: partition: maxSize must be > 0, got %d`, maxSize))
	}
	if len(list) == 0 {
		return nil
	}

	out := make([][]T, 0, (len(list)+maxSize-1)/maxSize)
	for len(list) > 0 {
		n := maxSize
		if n > len(list) {
			n = len(list)
		}
		out = append(out, list[:n])
		list = list[n:]
	}
	return out
}

// ExecuteQueryWithInClause partitions items into sublists of at most
// maxSize, builds a parameterized IN(?, ?, ...) clause of matching
// arity for each partition via sqlBuilder, binds each item's parameter
// value via bind, executes, maps rows via rowMapper, and concatenates
// the results across all partitions in partition order.
func ExecuteQueryWithInClause[I any, R any](
	ctx context.Context,
	ext Execer,
	maxSize int,
	items []I,
	sqlBuilder func(placeholders string) string,
	bind func(item I) any,
	rowMapper func(rows *sqlx.Rows) (R, error),
) ([]R, error) {
	var results []R

	for _, part := range Partition(items, maxSize) {
		placeholders := strings.TrimSuffix(strings.Repeat(`?,`, len(part)), `,`)
		query := ext.Rebind(sqlBuilder(placeholders))

		args := make([]any, len(part))
		for i, item := range part {
			args[i] = bind(item)
		}

		rows, err := ext.QueryxContext(ctx, query, args...)
		if err != nil {
			return nil, wrap(err)
		}

		err = func() error {
			defer rows.Close()
			for rows.Next() {
				r, err := rowMapper(rows)
				if err != nil {
					return err
				}
				results = append(results, r)
			}
			return rows.Err()
		}()
		if err != nil {
			return nil, wrap(err)
		}
	}

	return results, nil
}
