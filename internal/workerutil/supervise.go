// Package workerutil runs background goroutines with panic containment.
//
// Two shapes are provided: Supervise keeps a long-lived worker (hotkey
// message loop, config watcher, pipe acceptor) alive across panics with
// capped exponential backoff, and Go runs a short one-shot task (a shortcut
// trigger, a macro invocation) whose panic is logged and reported once.
package workerutil

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultMaxRestarts    = 10
)

// Policy controls restart behaviour for Supervise. Zero fields take the
// package defaults (100ms, 5s, 10).
type Policy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// MaxRestarts bounds the number of runs. 1 means run once and give up
	// on the first panic.
	MaxRestarts int

	// OnPanic runs after each recovered panic, before the backoff wait.
	// attempt is 1-based.
	OnPanic func(worker string, attempt int)
	// OnGiveUp runs once when MaxRestarts panics have been recovered.
	OnGiveUp func(worker string, runs int)
	// Stopping reports app teardown. A panic observed while Stopping is true
	// ends the worker without OnPanic or a restart.
	Stopping func() bool
}

func (p Policy) normalized() Policy {
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	if p.MaxRestarts <= 0 {
		p.MaxRestarts = defaultMaxRestarts
	}
	if p.MaxBackoff < p.InitialBackoff {
		slog.Warn("[DEBUG-PANIC] max backoff below initial backoff, clamping",
			"initialBackoff", p.InitialBackoff, "maxBackoff", p.MaxBackoff)
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// Supervise starts fn on a goroutine tracked by wg and restarts it after a
// panic until fn returns normally, ctx is cancelled, Stopping reports true,
// or MaxRestarts runs have panicked.
func Supervise(ctx context.Context, name string, wg *sync.WaitGroup, fn func(ctx context.Context), policy Policy) {
	policy = policy.normalized()
	wg.Go(func() {
		supervise(ctx, name, fn, policy)
	})
}

func supervise(ctx context.Context, name string, fn func(ctx context.Context), policy Policy) {
	delay := policy.InitialBackoff
	for run := 1; run <= policy.MaxRestarts; run++ {
		if !runGuarded(name, func() { fn(ctx) }) || ctx.Err() != nil {
			return
		}
		if policy.Stopping != nil && policy.Stopping() {
			slog.Info("[DEBUG-PANIC] worker stopped during shutdown", "worker", name)
			return
		}

		slog.Warn("[DEBUG-PANIC] worker panicked, scheduling restart",
			"worker", name, "attempt", run, "delay", delay)
		if policy.OnPanic != nil {
			policy.OnPanic(name, run)
		}
		if run == policy.MaxRestarts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = nextBackoff(delay, policy.MaxBackoff)
	}

	slog.Error("[DEBUG-PANIC] worker gave up after repeated panics",
		"worker", name, "runs", policy.MaxRestarts)
	if policy.OnGiveUp != nil {
		policy.OnGiveUp(name, policy.MaxRestarts)
	}
}

// Go runs fn once on a goroutine tracked by wg. A panic is recovered, logged
// and passed to onPanic (which may be nil) as an error.
func Go(wg *sync.WaitGroup, name string, fn func(), onPanic func(error)) {
	wg.Go(func() {
		var recovered any
		panicked := runGuardedValue(name, fn, &recovered)
		if panicked && onPanic != nil {
			onPanic(fmt.Errorf("%s panicked: %v", name, recovered))
		}
	})
}

// runGuarded calls fn and reports whether it panicked.
func runGuarded(name string, fn func()) bool {
	var discard any
	return runGuardedValue(name, fn, &discard)
}

func runGuardedValue(name string, fn func(), recovered *any) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[DEBUG-PANIC] goroutine recovered from panic",
				"worker", name, "panic", r, "stack", string(debug.Stack()))
			*recovered = r
			panicked = true
		}
	}()
	fn()
	return false
}

// nextBackoff doubles current up to maxBackoff, guarding against overflow.
func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	if current <= 0 {
		return defaultInitialBackoff
	}
	next := current * 2
	if next > maxBackoff || next < current {
		return maxBackoff
	}
	return next
}
