package lock

import (
	"context"
	"sync"
	"time"
)

// InMemoryProvider is a single-process Provider test fixture - not a
// durable store, and not exported as a production option. Its renewal
// semantics intentionally differ from RDBMSProvider: expiry advances to
// max(currentExpiry, now) + leaseDuration rather than now +
// leaseDuration, since it has no independent store clock to measure
// against and this is the only semantics a test double needs. Renew
// also refreshes a lease that has already expired, as long as no other
// execution has acquired the lock since.
type InMemoryProvider struct {
	mu     sync.Mutex
	leases map[string]Lease
}

var _ Provider = (*InMemoryProvider)(nil)

// NewInMemoryProvider returns an empty InMemoryProvider.
func NewInMemoryProvider() *InMemoryProvider {
	return &InMemoryProvider{leases: make(map[string]Lease)}
}

func (p *InMemoryProvider) Acquire(_ context.Context, lockName, executionID string, leaseDuration time.Duration) (*Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if existing, ok := p.leases[lockName]; ok && existing.IsValid(now) {
		return nil, nil
	}

	lease := Lease{LockName: lockName, ExecutionID: executionID, ExpiresAt: now.Add(leaseDuration)}
	p.leases[lockName] = lease
	out := lease
	return &out, nil
}

func (p *InMemoryProvider) Renew(_ context.Context, leases []Lease, leaseDuration time.Duration) ([]Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var renewed []Lease
	for _, l := range leases {
		existing, ok := p.leases[l.LockName]
		if !ok || existing.ExecutionID != l.ExecutionID {
			continue
		}

		base := existing.ExpiresAt
		if now.After(base) {
			base = now
		}
		refreshed := Lease{LockName: l.LockName, ExecutionID: l.ExecutionID, ExpiresAt: base.Add(leaseDuration)}
		p.leases[l.LockName] = refreshed
		renewed = append(renewed, refreshed)
	}
	return renewed, nil
}

func (p *InMemoryProvider) Release(_ context.Context, leases []Lease) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, l := range leases {
		if existing, ok := p.leases[l.LockName]; ok && existing.ExecutionID == l.ExecutionID {
			delete(p.leases, l.LockName)
		}
	}
	return nil
}
