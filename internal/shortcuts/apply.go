package shortcuts

import (
	"fmt"
	"log/slog"

	"gamevault/internal/macro"
)

// Triggers dispatch a fired accelerator. They run on the service's callback
// goroutine, so long work must be handed off.
type Triggers struct {
	OnMapping func(mapping macro.KeyMapping)
	OnMacro   func(m macro.Macro)
}

// Apply executes plan against svc and returns the accelerators now owned.
// Individual failures are logged and collected; they never stop the rest of
// the plan.
func Apply(svc Service, plan Plan, triggers Triggers) (OwnedSet, []error) {
	var errs []error
	for _, accel := range plan.Unregister {
		if err := svc.Unregister(accel); err != nil {
			slog.Warn("[DEBUG-SHORTCUT] failed to unregister owned shortcut", "accelerator", accel, "error", err)
			errs = append(errs, fmt.Errorf("unregister %s: %w", accel, err))
		}
	}

	checker, _ := svc.(RegistrationChecker)
	var owned OwnedSet
	for _, claim := range plan.Claims {
		if checker != nil && checker.IsRegistered(claim.Accelerator) {
			slog.Debug("[DEBUG-SHORTCUT] clearing stale registration", "accelerator", claim.Accelerator)
			if err := svc.Unregister(claim.Accelerator); err != nil {
				slog.Warn("[DEBUG-SHORTCUT] failed to clear stale registration", "accelerator", claim.Accelerator, "error", err)
			}
		}
		if err := svc.Register(claim.Accelerator, claimHandler(claim, triggers)); err != nil {
			slog.Warn("[DEBUG-SHORTCUT] failed to register shortcut",
				"accelerator", claim.Accelerator, "kind", claim.Kind, "name", claim.Name(), "error", err)
			errs = append(errs, fmt.Errorf("register %s for %s %q: %w", claim.Accelerator, claim.Kind, claim.Name(), err))
			continue
		}
		owned.Add(claim.Accelerator)
	}
	return owned, errs
}

func claimHandler(claim Claim, triggers Triggers) Handler {
	return func(state KeyState) {
		if state != Pressed {
			return
		}
		switch claim.Kind {
		case ClaimMapping:
			if triggers.OnMapping != nil {
				triggers.OnMapping(claim.Mapping)
			}
		case ClaimMacro:
			if triggers.OnMacro != nil {
				triggers.OnMacro(claim.Macro)
			}
		}
	}
}
