package lock

import "fmt"

// LockError wraps a provider failure - network/driver errors, not
// contention, which is represented as a non-executed result instead.
type LockError struct {
	Cause error
}

func (e *LockError) Error() string { return fmt.Sprintf(`lock: %v`, e.Cause) }

func (e *LockError) Unwrap() error { return e.Cause }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &LockError{Cause: err}
}
