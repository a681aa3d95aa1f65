package macro

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"gamevault/internal/workerutil"
)

// Handle is a running macro invocation.
type Handle struct {
	id      string
	macroID string
	name    string

	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool

	mu  sync.Mutex
	err error
}

// ID returns the invocation id.
func (h *Handle) ID() string { return h.id }

// MacroID returns the id of the macro being run.
func (h *Handle) MacroID() string { return h.macroID }

// Name returns the name of the macro being run.
func (h *Handle) Name() string { return h.name }

// Cancel stops the invocation before its next action and releases every key
// it still holds. It is safe to call more than once and after completion.
func (h *Handle) Cancel() { h.cancel() }

// Started reports whether the invocation got past its queue wait. A queued
// run cancelled while waiting never starts.
func (h *Handle) Started() bool { return h.started.Load() }

// Done is closed when the invocation has returned.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the invocation result. It is nil until Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the invocation returns and reports its result.
func (h *Handle) Wait() error {
	<-h.done
	return h.Err()
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

// Start runs m on its own goroutine and returns a handle to cancel or await
// it.
func (e *Executor) Start(ctx context.Context, m Macro) *Handle {
	return e.start(ctx, m, nil, nil, nil)
}

// start launches m once every channel in after is closed. onStart runs on
// the macro goroutine right before the first action and onDone right before
// Done is closed.
func (e *Executor) start(ctx context.Context, m Macro, after []<-chan struct{}, onStart func(*Handle), onDone func(*Handle, error)) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		id:      uuid.NewString(),
		macroID: m.ID,
		name:    m.Name,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	var once sync.Once
	complete := func(result error) {
		once.Do(func() {
			cancel()
			if onDone != nil {
				onDone(h, result)
			}
			h.finish(result)
		})
	}

	workerutil.Go(&e.wg, "macro:"+m.Name, func() {
		for _, prev := range after {
			select {
			case <-prev:
			case <-runCtx.Done():
				complete(runCtx.Err())
				return
			}
		}
		h.started.Store(true)
		if onStart != nil {
			onStart(h)
		}
		complete(e.Run(runCtx, m))
	}, complete)
	return h
}
