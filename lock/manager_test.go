package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestManager_MutualExclusion mirrors the two-worker contention
// scenario: only one of two concurrent TryLock callers on the same
// lock name executes its body, and the shared counter reflects exactly
// one increment.
func TestManager_MutualExclusion(t *testing.T) {
	provider := NewInMemoryProvider()
	m1 := NewManager(provider, nil)
	m2 := NewManager(provider, nil)

	var counter int64
	var wg sync.WaitGroup
	results := make([]TryLockResult, 2)

	run := func(i int, m *Manager) {
		defer wg.Done()
		res, err := m.TryLock(context.Background(), `payments`, func(ctx context.Context, lease Lease) error {
			atomic.AddInt64(&counter, 5)
			time.Sleep(50 * time.Millisecond)
			return nil
		})
		require.NoError(t, err)
		results[i] = res
	}

	wg.Add(2)
	go run(0, m1)
	go run(1, m2)
	wg.Wait()

	require.NotEqual(t, results[0].Executed, results[1].Executed)
	require.EqualValues(t, 5, counter)
}

func TestManager_TryLock_ContentionReturnsNotExecuted(t *testing.T) {
	provider := NewInMemoryProvider()
	m := NewManager(provider, nil)
	ctx := context.Background()

	_, err := provider.Acquire(ctx, `payments`, `someone-else`, time.Minute)
	require.NoError(t, err)

	res, err := m.TryLock(ctx, `payments`, func(ctx context.Context, lease Lease) error {
		t.Fatal(`body should not run when contended`)
		return nil
	})
	require.NoError(t, err)
	require.False(t, res.Executed)
}

func TestManager_TryLock_BodyErrorPropagates(t *testing.T) {
	provider := NewInMemoryProvider()
	m := NewManager(provider, nil)
	ctx := context.Background()

	boom := errTest(`boom`)
	res, err := m.TryLock(ctx, `payments`, func(ctx context.Context, lease Lease) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.True(t, res.Executed)

	// Release happened despite the error: a fresh caller can acquire.
	res2, err := m.TryLock(ctx, `payments`, func(ctx context.Context, lease Lease) error { return nil })
	require.NoError(t, err)
	require.True(t, res2.Executed)
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestManager_RenewDueLeases_DropsLeasesProviderDidNotRenew(t *testing.T) {
	provider := NewInMemoryProvider()
	m := NewManager(provider, nil)

	now := time.Now()
	due := Lease{LockName: `stale`, ExecutionID: `exec-gone`, ExpiresAt: now.Add(time.Second)}
	m.active[due.ExecutionID] = due

	require.NoError(t, m.renewDueLeases(context.Background()))

	m.mu.Lock()
	_, stillPresent := m.active[due.ExecutionID]
	m.mu.Unlock()
	require.False(t, stillPresent)
}

// TestManager_Start_ReturnsPromptly exercises the real Start path
// against a real Provider, which registers the renewal loop via
// RunWhileUp from inside Runner.Start's onStart callback - the path
// that used to deadlock when Start held the Runner's mutex across
// onStart.
func TestManager_Start_ReturnsPromptly(t *testing.T) {
	m := NewManager(NewInMemoryProvider(), nil)

	done := make(chan error, 1)
	go func() { done <- m.Start() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal(`Manager.Start did not return`)
	}

	m.Stop()
}

func TestManager_RenewDueLeases_RenewsWithinThreshold(t *testing.T) {
	provider := NewInMemoryProvider()
	m := NewManager(provider, nil)
	ctx := context.Background()

	lease, err := provider.Acquire(ctx, `payments`, `exec-1`, RenewalThreshold/2)
	require.NoError(t, err)
	m.active[lease.ExecutionID] = *lease

	require.NoError(t, m.renewDueLeases(ctx))

	m.mu.Lock()
	got, ok := m.active[lease.ExecutionID]
	m.mu.Unlock()
	require.True(t, ok)
	require.True(t, got.ExpiresAt.After(lease.ExpiresAt))
}
