package macro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// OverlapPolicy decides what happens when a macro is triggered while an
// earlier invocation of the same macro is still running.
type OverlapPolicy string

const (
	// OverlapInterleave starts the new invocation alongside the running one.
	OverlapInterleave OverlapPolicy = "interleave"
	// OverlapIgnore drops the new trigger.
	OverlapIgnore OverlapPolicy = "ignore"
	// OverlapQueue starts the new invocation after the running ones finish.
	OverlapQueue OverlapPolicy = "queue"
)

// ErrAlreadyRunning is returned by Trigger under OverlapIgnore.
var ErrAlreadyRunning = errors.New("macro is already running")

// ParseOverlapPolicy parses a policy name. An empty name is OverlapInterleave.
func ParseOverlapPolicy(raw string) (OverlapPolicy, error) {
	switch OverlapPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", OverlapInterleave:
		return OverlapInterleave, nil
	case OverlapIgnore:
		return OverlapIgnore, nil
	case OverlapQueue:
		return OverlapQueue, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q (want interleave, ignore or queue)", raw)
	}
}

// RunnerHooks observe invocation lifecycle. Nil hooks are skipped. Hooks run
// on the macro goroutine. OnStart fires when a queued invocation actually
// begins, and OnFinish only follows an OnStart: a queued run cancelled
// before its turn reports neither.
type RunnerHooks struct {
	OnStart  func(h *Handle)
	OnFinish func(h *Handle, err error)
}

// Run describes a live invocation.
type Run struct {
	HandleID string `json:"handle_id"`
	MacroID  string `json:"macro_id"`
	Name     string `json:"name"`
}

// Runner starts macro invocations and tracks the live ones.
type Runner struct {
	exec  *Executor
	hooks RunnerHooks

	mu      sync.Mutex
	policy  OverlapPolicy
	live    map[string]*Handle
	byMacro map[string][]*Handle
}

// NewRunner returns a Runner that executes through exec.
func NewRunner(exec *Executor, policy OverlapPolicy, hooks RunnerHooks) *Runner {
	if policy == "" {
		policy = OverlapInterleave
	}
	return &Runner{
		exec:    exec,
		hooks:   hooks,
		policy:  policy,
		live:    make(map[string]*Handle),
		byMacro: make(map[string][]*Handle),
	}
}

// SetPolicy changes the overlap policy for future triggers.
func (r *Runner) SetPolicy(policy OverlapPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = policy
}

// Policy returns the current overlap policy.
func (r *Runner) Policy() OverlapPolicy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policy
}

// Trigger starts m according to the overlap policy.
func (r *Runner) Trigger(ctx context.Context, m Macro) (*Handle, error) {
	key := m.key()

	r.mu.Lock()
	defer r.mu.Unlock()

	running := r.byMacro[key]
	var after []<-chan struct{}
	switch r.policy {
	case OverlapIgnore:
		if len(running) > 0 {
			slog.Debug("[DEBUG-MACRO] trigger ignored, macro still running", "macro", m.Name)
			return nil, fmt.Errorf("macro %q: %w", m.Name, ErrAlreadyRunning)
		}
	case OverlapQueue:
		// Wait on every earlier run. A queued predecessor cancelled before
		// its turn closes Done early and must not release this one.
		for _, prev := range running {
			after = append(after, prev.Done())
		}
	}

	h := r.exec.start(ctx, m, after, r.hooks.OnStart, r.finished(key))
	r.live[h.id] = h
	r.byMacro[key] = append(running, h)
	slog.Debug("[DEBUG-MACRO] macro triggered", "macro", m.Name, "handle", h.id, "policy", r.policy, "queued", len(after) > 0)
	return h, nil
}

func (r *Runner) finished(key string) func(*Handle, error) {
	return func(h *Handle, err error) {
		r.mu.Lock()
		delete(r.live, h.id)
		remaining := slices.DeleteFunc(r.byMacro[key], func(other *Handle) bool { return other == h })
		if len(remaining) == 0 {
			delete(r.byMacro, key)
		} else {
			r.byMacro[key] = remaining
		}
		r.mu.Unlock()

		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("[DEBUG-MACRO] macro failed", "macro", h.name, "handle", h.id, "error", err)
		}
		if !h.Started() {
			slog.Debug("[DEBUG-MACRO] queued macro cancelled before start", "macro", h.name, "handle", h.id)
			return
		}
		if r.hooks.OnFinish != nil {
			r.hooks.OnFinish(h, err)
		}
	}
}

// Cancel stops one invocation. It reports whether the handle was live.
func (r *Runner) Cancel(handleID string) bool {
	r.mu.Lock()
	h, ok := r.live[handleID]
	r.mu.Unlock()
	if ok {
		h.Cancel()
	}
	return ok
}

// CancelAll stops every live invocation and returns how many were live.
func (r *Runner) CancelAll() int {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.live))
	for _, h := range r.live {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
	return len(handles)
}

// Running lists live invocations ordered by macro name then handle id.
func (r *Runner) Running() []Run {
	r.mu.Lock()
	runs := make([]Run, 0, len(r.live))
	for _, h := range r.live {
		runs = append(runs, Run{HandleID: h.id, MacroID: h.macroID, Name: h.name})
	}
	r.mu.Unlock()

	slices.SortFunc(runs, func(a, b Run) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.HandleID, b.HandleID)
	})
	return runs
}

// Shutdown cancels every invocation and waits for them to return.
func (r *Runner) Shutdown() {
	r.CancelAll()
	r.exec.Wait()
}
