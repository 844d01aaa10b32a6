// Package rdbms provides the connection-scoped transactional execution,
// batched DML, and IN(...) partitioning helpers shared by the
// lock/cluster/cacheinv reference stores. It generalizes the SQL
// building conventions of the teacher repo's sql/export package
// (Snippet{SQL, Args}, Dialect) from one-shot CSV export queries to
// live, transactional query execution against a real driver.
package rdbms

import "fmt"

// RdbmsError wraps any failure surfaced by this package, preserving
// the underlying driver/SQL error as Cause.
type RdbmsError struct {
	Cause error
}

func (e *RdbmsError) Error() string {
	return fmt.Sprintf(`rdbms: %v`, e.Cause)
}

func (e *RdbmsError) Unwrap() error { return e.Cause }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &RdbmsError{Cause: err}
}
