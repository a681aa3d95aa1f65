package workerutil

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitOrFail(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("workers did not finish within %s", timeout)
	}
}

func TestSuperviseNormalExitDoesNotRestart(t *testing.T) {
	var wg sync.WaitGroup
	var runs atomic.Int32
	Supervise(t.Context(), "normal", &wg, func(context.Context) {
		runs.Add(1)
	}, Policy{InitialBackoff: time.Millisecond})
	waitOrFail(t, &wg, time.Second)

	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}
}

func TestSuperviseRestartsAfterPanic(t *testing.T) {
	var wg sync.WaitGroup
	var runs atomic.Int32
	var attempts []int
	var mu sync.Mutex

	Supervise(t.Context(), "flaky", &wg, func(context.Context) {
		if runs.Add(1) == 1 {
			panic("first run fails")
		}
	}, Policy{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		MaxRestarts:    5,
		OnPanic: func(_ string, attempt int) {
			mu.Lock()
			attempts = append(attempts, attempt)
			mu.Unlock()
		},
	})
	waitOrFail(t, &wg, time.Second)

	if got := runs.Load(); got != 2 {
		t.Fatalf("runs = %d, want 2", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 1 || attempts[0] != 1 {
		t.Fatalf("OnPanic attempts = %v, want [1]", attempts)
	}
}

func TestSuperviseGivesUp(t *testing.T) {
	var wg sync.WaitGroup
	var runs, gaveUp atomic.Int32
	Supervise(t.Context(), "broken", &wg, func(context.Context) {
		runs.Add(1)
		panic("always")
	}, Policy{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		MaxRestarts:    3,
		OnGiveUp: func(_ string, n int) {
			if n != 3 {
				t.Errorf("OnGiveUp runs = %d, want 3", n)
			}
			gaveUp.Add(1)
		},
	})
	waitOrFail(t, &wg, time.Second)

	if got := runs.Load(); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
	if got := gaveUp.Load(); got != 1 {
		t.Fatalf("OnGiveUp calls = %d, want 1", got)
	}
}

func TestSuperviseStopsDuringShutdown(t *testing.T) {
	var wg sync.WaitGroup
	var runs, panics atomic.Int32
	Supervise(t.Context(), "teardown", &wg, func(context.Context) {
		runs.Add(1)
		panic("during teardown")
	}, Policy{
		InitialBackoff: time.Millisecond,
		OnPanic:        func(string, int) { panics.Add(1) },
		Stopping:       func() bool { return true },
	})
	waitOrFail(t, &wg, time.Second)

	if runs.Load() != 1 || panics.Load() != 0 {
		t.Fatalf("runs = %d panics = %d, want 1 and 0", runs.Load(), panics.Load())
	}
}

func TestSuperviseCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	started := make(chan struct{}, 1)
	Supervise(ctx, "slow-backoff", &wg, func(context.Context) {
		started <- struct{}{}
		panic("enter backoff")
	}, Policy{InitialBackoff: 10 * time.Second, MaxBackoff: 10 * time.Second})

	<-started
	cancel()
	waitOrFail(t, &wg, 2*time.Second)
}

func TestGoReportsPanic(t *testing.T) {
	var wg sync.WaitGroup
	var reported atomic.Value
	Go(&wg, "trigger", func() { panic("boom") }, func(err error) {
		reported.Store(err.Error())
	})
	waitOrFail(t, &wg, time.Second)

	msg, _ := reported.Load().(string)
	if !strings.Contains(msg, "trigger panicked: boom") {
		t.Fatalf("reported error = %q", msg)
	}
}

func TestGoNormalRun(t *testing.T) {
	var wg sync.WaitGroup
	var ran atomic.Bool
	Go(&wg, "ok", func() { ran.Store(true) }, func(error) {
		t.Error("onPanic called for a normal run")
	})
	waitOrFail(t, &wg, time.Second)
	if !ran.Load() {
		t.Fatal("fn did not run")
	}
}

func TestPolicyNormalized(t *testing.T) {
	p := Policy{}.normalized()
	if p.InitialBackoff != defaultInitialBackoff || p.MaxBackoff != defaultMaxBackoff || p.MaxRestarts != defaultMaxRestarts {
		t.Fatalf("defaults not applied: %+v", p)
	}
	p = Policy{InitialBackoff: time.Second, MaxBackoff: time.Millisecond}.normalized()
	if p.MaxBackoff != time.Second {
		t.Fatalf("MaxBackoff = %s, want clamp to 1s", p.MaxBackoff)
	}
}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		name    string
		current time.Duration
		max     time.Duration
		want    time.Duration
	}{
		{name: "zero", current: 0, max: time.Second, want: defaultInitialBackoff},
		{name: "doubles", current: 200 * time.Millisecond, max: 5 * time.Second, want: 400 * time.Millisecond},
		{name: "caps", current: 3 * time.Second, max: 5 * time.Second, want: 5 * time.Second},
		{name: "overflow", current: time.Duration(1<<62 - 1), max: 5 * time.Second, want: 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextBackoff(tt.current, tt.max); got != tt.want {
				t.Fatalf("nextBackoff(%s, %s) = %s, want %s", tt.current, tt.max, got, tt.want)
			}
		})
	}
}
