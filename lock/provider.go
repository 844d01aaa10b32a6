// Package lock implements lease-based distributed mutual exclusion: a
// Provider stores at most one unexpired lease per lock name, and a
// Manager layers executionId bookkeeping and background renewal on top
// of it. Leases are advisory, not fencing - a caller that overruns its
// lease can still run concurrently with a new holder. Callers that need
// true linearizability must look elsewhere.
package lock

import (
	"context"
	"time"
)

// Lease is a single held (or formerly held) lock.
type Lease struct {
	LockName    string
	ExecutionID string
	ExpiresAt   time.Time
}

// IsValid reports whether the lease had not yet expired as of now, by
// the caller's own clock. Purely advisory - the store's clock is
// authoritative for actual mutual exclusion.
func (l Lease) IsValid(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}

// Provider is the storage contract a Manager drives. Implementations
// must guarantee at most one unexpired row per lock name at the store.
type Provider interface {
	// Acquire atomically inserts a fresh lease for lockName, or replaces
	// an existing but already-expired one. Returns (nil, nil) - not an
	// error - when an unexpired lease is already held by someone else.
	Acquire(ctx context.Context, lockName, executionID string, leaseDuration time.Duration) (*Lease, error)
	// Renew refreshes the expiry of every lease in leases whose
	// (lockName, executionID) still matches an unexpired row at the
	// store. The returned slice is a subset of leases - order is not
	// guaranteed to match the input.
	Renew(ctx context.Context, leases []Lease, leaseDuration time.Duration) ([]Lease, error)
	// Release deletes rows matching leases by (lockName, executionID).
	// Idempotent: leases that are already gone (expired and replaced, or
	// already released) are silently ignored.
	Release(ctx context.Context, leases []Lease) error
}
