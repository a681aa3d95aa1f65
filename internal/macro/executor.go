package macro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gamevault/internal/combo"
)

const (
	// DefaultTapHold is the hold time for a key tap given by code.
	DefaultTapHold = 50 * time.Millisecond
	// DefaultComboKeyHold is the hold time for each non-modifier key of a
	// named combo tap.
	DefaultComboKeyHold = 30 * time.Millisecond
)

// Simulator injects keyboard input into the OS.
type Simulator interface {
	KeyDown(ctx context.Context, vk combo.VK) error
	KeyUp(ctx context.Context, vk combo.VK) error
	Tap(ctx context.Context, vk combo.VK, hold time.Duration) error
}

// ExecutorOptions tunes an Executor. Zero values take the defaults.
type ExecutorOptions struct {
	TapHold      time.Duration
	ComboKeyHold time.Duration
	// ReleaseHeldOnFailure lifts every key still held when a simulation
	// call fails. Cancellation always releases held keys.
	ReleaseHeldOnFailure bool
	// Sleep waits for d or until ctx is done. Tests replace it to record
	// waits without sleeping.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ActionError reports the macro step whose simulation call failed.
type ActionError struct {
	Macro  string
	Pass   int
	Index  int
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("macro %q pass %d action %d (%s): %v", e.Macro, e.Pass, e.Index, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Executor replays macros and key mappings through a Simulator.
type Executor struct {
	sim  Simulator
	opts ExecutorOptions

	wg sync.WaitGroup
}

// NewExecutor returns an Executor that drives sim.
func NewExecutor(sim Simulator, opts ExecutorOptions) *Executor {
	if opts.TapHold <= 0 {
		opts.TapHold = DefaultTapHold
	}
	if opts.ComboKeyHold <= 0 {
		opts.ComboKeyHold = DefaultComboKeyHold
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Executor{sim: sim, opts: opts}
}

// Run executes m to completion on the calling goroutine. Actions run in list
// order, RepeatCount times. Cancelling ctx stops the macro before the next
// action and releases any key it still holds.
func (e *Executor) Run(ctx context.Context, m Macro) error {
	run := &heldKeys{}
	err := e.run(ctx, run, m)
	e.settle(ctx, run, err)
	return err
}

func (e *Executor) run(ctx context.Context, held *heldKeys, m Macro) error {
	wait := m.interActionDelay()
	for pass := 1; pass <= m.passes(); pass++ {
		for i, action := range m.Actions {
			if err := ctx.Err(); err != nil {
				return err
			}
			if d, ok := action.(Delay); ok {
				if err := e.opts.Sleep(ctx, d.wait()); err != nil {
					return err
				}
				continue
			}
			if err := e.do(ctx, held, action); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return &ActionError{Macro: m.Name, Pass: pass, Index: i, Action: actionKind(action), Err: err}
			}
			if wait > 0 {
				if err := e.opts.Sleep(ctx, wait); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ReplayCombo simulates a named combo the same way a KeyTap with a KeyName
// does: modifiers down, each key tapped, modifiers up in reverse.
func (e *Executor) ReplayCombo(ctx context.Context, raw string) error {
	held := &heldKeys{}
	err := e.tapCombo(ctx, held, raw, 0)
	e.settle(ctx, held, err)
	return err
}

func (e *Executor) do(ctx context.Context, held *heldKeys, action Action) error {
	switch a := action.(type) {
	case KeyPress:
		if a.KeyCode == 0 {
			return nil
		}
		if err := e.sim.KeyDown(ctx, a.KeyCode); err != nil {
			return err
		}
		held.add(a.KeyCode)
		return nil
	case KeyRelease:
		if a.KeyCode == 0 {
			return nil
		}
		if err := e.sim.KeyUp(ctx, a.KeyCode); err != nil {
			return err
		}
		held.remove(a.KeyCode)
		return nil
	case KeyTap:
		if a.KeyName != "" {
			return e.tapCombo(ctx, held, a.KeyName, a.Hold)
		}
		if a.KeyCode == 0 {
			return nil
		}
		hold := e.opts.TapHold
		if a.Hold > 0 {
			hold = a.Hold
		}
		return e.sim.Tap(ctx, a.KeyCode, hold)
	case nil:
		return errors.New("nil action")
	default:
		return fmt.Errorf("unsupported action type %T", action)
	}
}

func (e *Executor) tapCombo(ctx context.Context, held *heldKeys, raw string, hold time.Duration) error {
	keys, err := combo.Expand(raw)
	if err != nil {
		return err
	}
	if hold <= 0 {
		hold = e.opts.ComboKeyHold
	}
	mods, rest := combo.SplitModifiers(keys)

	for _, mod := range mods {
		if err := e.sim.KeyDown(ctx, mod.VK); err != nil {
			return fmt.Errorf("press %s: %w", mod.Token, err)
		}
		held.add(mod.VK)
	}
	for _, key := range rest {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.sim.Tap(ctx, key.VK, hold); err != nil {
			return fmt.Errorf("tap %s: %w", key.Token, err)
		}
	}
	for _, mod := range slices.Backward(mods) {
		if err := e.sim.KeyUp(ctx, mod.VK); err != nil {
			return fmt.Errorf("release %s: %w", mod.Token, err)
		}
		held.remove(mod.VK)
	}
	return nil
}

// settle releases keys left down by a run that ended early. Cancellation
// always releases; a simulation failure releases only when configured to.
func (e *Executor) settle(ctx context.Context, held *heldKeys, runErr error) {
	if runErr == nil || held.empty() {
		return
	}
	cancelled := ctx.Err() != nil
	if !cancelled && !e.opts.ReleaseHeldOnFailure {
		slog.Warn("[DEBUG-MACRO] keys left held after failure", "keys", held.snapshot(), "error", runErr)
		return
	}
	// ctx is already done when cancelled; the release must still reach the OS.
	releaseCtx := context.WithoutCancel(ctx)
	for _, vk := range slices.Backward(held.snapshot()) {
		if err := e.sim.KeyUp(releaseCtx, vk); err != nil {
			slog.Warn("[DEBUG-MACRO] failed to release held key", "vk", fmt.Sprintf("0x%02X", uint16(vk)), "error", err)
			continue
		}
		held.remove(vk)
	}
}

// Wait blocks until every macro started with Start has returned.
func (e *Executor) Wait() {
	e.wg.Wait()
}

func actionKind(action Action) string {
	if action == nil {
		return "nil"
	}
	return action.Kind()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// heldKeys tracks keys pressed but not yet released by one invocation, in
// press order.
type heldKeys struct {
	keys []combo.VK
}

func (h *heldKeys) add(vk combo.VK) {
	if !slices.Contains(h.keys, vk) {
		h.keys = append(h.keys, vk)
	}
}

func (h *heldKeys) remove(vk combo.VK) {
	h.keys = slices.DeleteFunc(h.keys, func(k combo.VK) bool { return k == vk })
}

func (h *heldKeys) empty() bool { return len(h.keys) == 0 }

func (h *heldKeys) snapshot() []combo.VK { return slices.Clone(h.keys) }
