package cacheinv

import "fmt"

// CacheInvError wraps a failure from a Cache or Bus operation,
// preserving the underlying cause.
type CacheInvError struct {
	Cause error
}

func (e *CacheInvError) Error() string { return fmt.Sprintf(`cacheinv: %v`, e.Cause) }
func (e *CacheInvError) Unwrap() error { return e.Cause }

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return &CacheInvError{Cause: err}
}
