package shortcuts

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DefaultDebounce delays a reconcile so the app-level registrar claims its
// accelerators first.
const DefaultDebounce = 150 * time.Millisecond

// Report summarizes one reconcile.
type Report struct {
	Registered []string  `json:"registered"`
	Skipped    []Skip    `json:"skipped"`
	Errors     []string  `json:"errors"`
	Disabled   bool      `json:"disabled"`
	At         time.Time `json:"at"`
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Debounce is the quiet period before Update reconciles. Zero means
	// DefaultDebounce.
	Debounce time.Duration
	// OnReconciled runs after every reconcile, outside the registry lock.
	OnReconciled func(Report)
}

// Registry owns the accelerators registered for key mappings and macros.
// Every reconcile rebuilds the owned set from scratch.
type Registry struct {
	svc          Service
	triggers     Triggers
	debounced    func(func())
	onReconciled func(Report)

	mu       sync.Mutex
	owned    OwnedSet
	pending  *Inputs
	disposed bool
	last     Report
}

// NewRegistry returns a Registry that registers through svc.
func NewRegistry(svc Service, triggers Triggers, opts RegistryOptions) *Registry {
	delay := opts.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Registry{
		svc:          svc,
		triggers:     triggers,
		debounced:    debounce.New(delay),
		onReconciled: opts.OnReconciled,
	}
}

// Update schedules a reconcile with in after the debounce delay. Only the
// latest inputs of a burst are applied.
func (r *Registry) Update(in Inputs) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		slog.Debug("[DEBUG-SHORTCUT] update after dispose ignored")
		return
	}
	r.pending = &in
	r.mu.Unlock()

	r.debounced(r.flush)
}

func (r *Registry) flush() {
	r.mu.Lock()
	if r.disposed || r.pending == nil {
		r.mu.Unlock()
		return
	}
	in := *r.pending
	r.pending = nil
	report := r.reconcileLocked(in)
	r.mu.Unlock()

	r.notify(report)
}

// ReconcileNow reconciles immediately and drops any pending Update.
func (r *Registry) ReconcileNow(in Inputs) (Report, error) {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return Report{}, errors.New("shortcut registry is disposed")
	}
	r.pending = nil
	report := r.reconcileLocked(in)
	r.mu.Unlock()

	r.notify(report)
	return report, nil
}

func (r *Registry) reconcileLocked(in Inputs) Report {
	plan := BuildPlan(r.owned, in)
	owned, errs := Apply(r.svc, plan, r.triggers)
	r.owned = owned

	report := Report{
		Registered: owned.List(),
		Skipped:    plan.Skipped,
		Disabled:   plan.Disabled,
		At:         time.Now(),
	}
	for _, err := range errs {
		report.Errors = append(report.Errors, err.Error())
	}
	for _, skip := range plan.Skipped {
		slog.Debug("[DEBUG-SHORTCUT] shortcut skipped",
			"kind", skip.Kind, "name", skip.Name, "combo", skip.Combo, "reason", skip.Reason)
	}
	slog.Info("[DEBUG-SHORTCUT] reconciled",
		"registered", owned.Len(), "skipped", len(plan.Skipped), "errors", len(errs), "disabled", plan.Disabled)
	r.last = report
	return report
}

func (r *Registry) notify(report Report) {
	if r.onReconciled != nil {
		r.onReconciled(report)
	}
}

// Owned returns the accelerators currently registered by the registry.
func (r *Registry) Owned() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owned.List()
}

// LastReport returns the most recent reconcile report.
func (r *Registry) LastReport() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Dispose unregisters every owned accelerator. A pending Update never runs
// after Dispose returns. Dispose is idempotent.
func (r *Registry) Dispose() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return nil
	}
	r.disposed = true
	r.pending = nil

	var errs []error
	for _, accel := range r.owned.List() {
		if err := r.svc.Unregister(accel); err != nil {
			errs = append(errs, fmt.Errorf("unregister %s: %w", accel, err))
		}
	}
	r.owned = OwnedSet{}
	return errors.Join(errs...)
}
