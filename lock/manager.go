package lock

import (
	"context"
	"sync"
	"time"

	"github.com/anchorware/ward-lifecycle"
	wardlog "github.com/anchorware/ward-log"
	"github.com/google/uuid"
)

const (
	// RenewalPeriod is how often the background renewer wakes up.
	RenewalPeriod = 3 * time.Second
	// RenewalThreshold is the remaining-lifetime window within which an
	// active lease is due for renewal.
	RenewalThreshold = 3 * RenewalPeriod
	// DefaultLeaseDuration is the lease length Manager requests from the
	// Provider on acquire and on renewal.
	DefaultLeaseDuration = 10 * RenewalPeriod
)

// TryLockResult reports the outcome of a TryLock call that did not
// itself fail. Executed distinguishes "the body ran" from contention;
// ExecutionID is populated either way: it is the id this attempt
// generated, not the id of whichever holder won.
type TryLockResult struct {
	Executed    bool
	ExecutionID string
}

// Manager drives a Provider: it mints executionIds, tracks acquired
// leases for background renewal, and releases them once the caller's
// body returns.
type Manager struct {
	provider      Provider
	leaseDuration time.Duration
	log           wardlog.Logger
	runner        *lifecycle.Runner

	mu     sync.Mutex
	active map[string]Lease // keyed by executionID
}

// NewManager constructs a Manager over provider. log may be nil.
func NewManager(provider Provider, log wardlog.Logger) *Manager {
	if log == nil {
		log = wardlog.Discard{}
	}
	return &Manager{
		provider:      provider,
		leaseDuration: DefaultLeaseDuration,
		log:           log,
		runner:        lifecycle.New(log),
		active:        make(map[string]Lease),
	}
}

// Start begins the background renewal loop. Idempotent.
func (m *Manager) Start() error {
	return m.runner.Start(func(ctx context.Context) error {
		m.runner.RunWhileUp(m.renewDueLeases, RenewalPeriod)
		return nil
	})
}

// Stop ends the background renewal loop. Idempotent.
func (m *Manager) Stop() { m.runner.Stop(nil) }

// TryLock attempts to acquire lockName and, if successful, runs body
// with the acquired lease, releasing it afterward regardless of
// outcome. body's error is returned unchanged to the caller. A failed
// Provider.Acquire call is wrapped as a *LockError; contention is
// reported as TryLockResult{Executed: false}, not an error.
func (m *Manager) TryLock(ctx context.Context, lockName string, body func(ctx context.Context, lease Lease) error) (TryLockResult, error) {
	executionID, err := uuid.NewV7()
	if err != nil {
		return TryLockResult{}, wrap(err)
	}
	id := executionID.String()

	lease, err := m.provider.Acquire(ctx, lockName, id, m.leaseDuration)
	if err != nil {
		return TryLockResult{}, wrap(err)
	}
	if lease == nil {
		return TryLockResult{Executed: false, ExecutionID: id}, nil
	}

	m.register(*lease)
	defer m.releaseLease(ctx, *lease)

	if err := body(ctx, *lease); err != nil {
		return TryLockResult{Executed: true, ExecutionID: id}, err
	}
	return TryLockResult{Executed: true, ExecutionID: id}, nil
}

func (m *Manager) register(lease Lease) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[lease.ExecutionID] = lease
}

func (m *Manager) releaseLease(ctx context.Context, lease Lease) {
	m.mu.Lock()
	delete(m.active, lease.ExecutionID)
	m.mu.Unlock()

	if err := m.provider.Release(ctx, []Lease{lease}); err != nil {
		wardlog.WithLock(m.log, lease.LockName, lease.ExecutionID).WithError(err).Warn(`lock: release failed`)
	}
}

// renewDueLeases snapshots the active set, renews whichever leases are
// within RenewalThreshold of expiring, and drops any that the Provider
// did not renew - lost leases are silently removed; body callers are
// expected to tolerate lease loss.
func (m *Manager) renewDueLeases(ctx context.Context) error {
	now := time.Now()

	m.mu.Lock()
	var due []Lease
	for _, l := range m.active {
		if l.ExpiresAt.Sub(now) <= RenewalThreshold {
			due = append(due, l)
		}
	}
	m.mu.Unlock()

	if len(due) == 0 {
		return nil
	}

	renewed, err := m.provider.Renew(ctx, due, m.leaseDuration)
	if err != nil {
		m.log.WithError(err).WithField(wardlog.FieldBatchCount, len(due)).Warn(`lock: renew failed`)
		return nil
	}

	renewedByID := make(map[string]Lease, len(renewed))
	for _, l := range renewed {
		renewedByID[l.ExecutionID] = l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range due {
		if r, ok := renewedByID[l.ExecutionID]; ok {
			m.active[l.ExecutionID] = r
		} else {
			delete(m.active, l.ExecutionID)
			wardlog.WithLock(m.log, l.LockName, l.ExecutionID).Warn(`lock: lease lost, not renewed`)
		}
	}

	return nil
}
