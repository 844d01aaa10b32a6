// Package lifecycle provides the start/stop scaffold shared by every
// component that runs background loops (lock renewal, cluster
// heartbeat/state-delivery, cache publish/poll). It generalizes the
// teacher repo's ad-hoc goroutine-plus-context.Context-cancellation
// idiom (see microbatch.Batcher.run, catrate.Limiter.worker) into a
// single reusable state machine.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	wardlog "github.com/anchorware/ward-log"
)

type (
	// State is one of the two lifecycle states.
	State int

	// Kind identifies the cause of a LifecycleError.
	Kind int

	// LifecycleError is raised when onStart fails during Start. The
	// Runner is guaranteed to already be stopped by the time this is
	// returned.
	LifecycleError struct {
		Kind  Kind
		Cause error
	}

	// Runner is a start/stop state machine with a background-loop
	// helper. The zero value is not usable; construct with New.
	Runner struct {
		mu     sync.Mutex
		state  State
		ctx    context.Context
		cancel context.CancelFunc
		loops  sync.WaitGroup
		log    wardlog.Logger
	}
)

const (
	StateDown State = iota
	StateUp
)

const (
	StartupFailed Kind = iota
)

func (s State) String() string {
	if s == StateUp {
		return `UP`
	}
	return `DOWN`
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf(`lifecycle: startup failed: %v`, e.Cause)
}

func (e *LifecycleError) Unwrap() error { return e.Cause }

// New constructs a Runner in the DOWN state. log may be nil, in which
// case a Discard logger is used.
func New(log wardlog.Logger) *Runner {
	if log == nil {
		log = wardlog.Discard{}
	}
	return &Runner{state: StateDown, log: log}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start transitions DOWN -> UP and invokes onStart, if provided.
// Calling Start while already UP is a no-op (idempotent). onStart runs
// without r.mu held, so it is free to call RunWhileUp on this same
// Runner - the common case, since every component's onStart registers
// its own background loops before returning. If onStart returns an
// error, the Runner is stopped again (onStop, if any background loops
// were registered by onStart itself, is not invoked here - callers
// that need symmetric teardown on startup failure should register
// their onStop via Stop explicitly) and a LifecycleError wraps the
// cause.
func (r *Runner) Start(onStart func(ctx context.Context) error) error {
	r.mu.Lock()
	if r.state == StateUp {
		r.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.ctx = ctx
	r.cancel = cancel
	r.state = StateUp
	r.mu.Unlock()

	if onStart == nil {
		return nil
	}

	if err := r.invokeStart(ctx, onStart); err != nil {
		r.Stop(nil)
		return &LifecycleError{Kind: StartupFailed, Cause: err}
	}

	return nil
}

func (r *Runner) invokeStart(ctx context.Context, onStart func(ctx context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf(`lifecycle: onStart panicked: %v`, rec)
		}
	}()
	return onStart(ctx)
}

// Stop transitions UP -> DOWN, cancels any in-flight RunWhileUp loops'
// context, waits for those loops to observe cancellation, then invokes
// onStop, if provided. Calling Stop while already DOWN is a no-op.
// onStop failures (returned error, or panic) are logged, never
// propagated.
func (r *Runner) Stop(onStop func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(onStop)
}

func (r *Runner) stopLocked(onStop func() error) {
	if r.state == StateDown {
		return
	}
	r.state = StateDown
	if r.cancel != nil {
		r.cancel()
	}

	// wait with the lock held: RunWhileUp never touches r.mu from
	// inside the loop goroutine, so this can't deadlock.
	r.loops.Wait()

	if onStop == nil {
		return
	}

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.WithField(`panic`, rec).Error(`lifecycle: onStop panicked`)
			}
		}()
		if err := onStop(); err != nil {
			r.log.WithError(err).Error(`lifecycle: onStop failed`)
		}
	}()
}

// RunWhileUp starts a background goroutine that repeatedly invokes
// body, sleeping period between iterations, for as long as the Runner
// is UP. If the Runner isn't UP when called, RunWhileUp is a no-op.
// body errors (including panics) are logged and the loop continues;
// they are never propagated to the caller. Cancellation is cooperative:
// body observes ctx.Done() at the next iteration boundary or wake, and
// Stop blocks for at most one in-flight iteration before returning.
func (r *Runner) RunWhileUp(body func(ctx context.Context) error, period time.Duration) {
	r.mu.Lock()
	if r.state != StateUp {
		r.mu.Unlock()
		return
	}
	ctx := r.ctx
	r.loops.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.loops.Done()

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			r.runIteration(ctx, body)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (r *Runner) runIteration(ctx context.Context, body func(ctx context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField(`panic`, rec).Error(`lifecycle: body panicked`)
		}
	}()

	if ctx.Err() != nil {
		return
	}

	if err := body(ctx); err != nil && ctx.Err() == nil {
		r.log.WithError(err).Warn(`lifecycle: body returned error`)
	}
}
