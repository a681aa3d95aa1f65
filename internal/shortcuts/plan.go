package shortcuts

import (
	"strings"

	"gamevault/internal/combo"
	"gamevault/internal/macro"
)

// ClaimKind says what a claimed accelerator triggers.
type ClaimKind string

const (
	ClaimMapping ClaimKind = "mapping"
	ClaimMacro   ClaimKind = "macro"
)

// SkipReason explains why an input was not registered.
type SkipReason string

const (
	SkipInactive        SkipReason = "inactive"
	SkipEmpty           SkipReason = "empty"
	SkipNoActions       SkipReason = "no_actions"
	SkipNotRegisterable SkipReason = "not_registerable"
	SkipReserved        SkipReason = "reserved"
	SkipDuplicate       SkipReason = "duplicate"
)

// Inputs is the desired state handed to a reconcile.
type Inputs struct {
	Mappings []macro.KeyMapping
	Macros   []macro.Macro
	Enabled  bool
	// Reserved accelerators belong to a higher-priority registrar. Either
	// vocabulary is accepted.
	Reserved []string
}

// Claim is one accelerator the plan will register.
type Claim struct {
	Accelerator string
	Kind        ClaimKind
	Mapping     macro.KeyMapping
	Macro       macro.Macro
}

// Name returns the name of the claimed mapping or macro.
func (c Claim) Name() string {
	if c.Kind == ClaimMacro {
		return c.Macro.Name
	}
	return c.Mapping.Name
}

// Skip records an input that was left unregistered.
type Skip struct {
	Kind   ClaimKind  `json:"kind"`
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Combo  string     `json:"combo"`
	Reason SkipReason `json:"reason"`
}

// Plan is the full set of service calls for one reconcile.
type Plan struct {
	Unregister []string
	Claims     []Claim
	Skipped    []Skip
	Disabled   bool
}

// BuildPlan computes the reconcile for owned and in. Every owned accelerator
// is unregistered. When enabled, active mappings claim first, then active
// macros; the first claim of an accelerator wins.
func BuildPlan(owned OwnedSet, in Inputs) Plan {
	plan := Plan{Unregister: owned.List()}
	if !in.Enabled {
		plan.Disabled = true
		return plan
	}

	reserved := make(map[string]struct{}, len(in.Reserved))
	for _, r := range in.Reserved {
		if c := combo.Canonical(r); c != "" {
			reserved[c] = struct{}{}
		}
	}
	claimed := make(map[string]struct{})

	consider := func(kind ClaimKind, id, name, raw string, active, complete bool, reasonIncomplete SkipReason) (string, bool) {
		skip := func(reason SkipReason) (string, bool) {
			plan.Skipped = append(plan.Skipped, Skip{Kind: kind, ID: id, Name: name, Combo: raw, Reason: reason})
			return "", false
		}
		switch {
		case !active:
			return skip(SkipInactive)
		case !complete:
			return skip(reasonIncomplete)
		case !combo.IsRegisterable(raw):
			return skip(SkipNotRegisterable)
		}
		accel := combo.Canonical(raw)
		if _, ok := reserved[accel]; ok {
			return skip(SkipReserved)
		}
		if _, ok := claimed[accel]; ok {
			return skip(SkipDuplicate)
		}
		claimed[accel] = struct{}{}
		return accel, true
	}

	for _, m := range in.Mappings {
		complete := strings.TrimSpace(m.SourceKey) != "" && strings.TrimSpace(m.TargetKey) != ""
		if accel, ok := consider(ClaimMapping, m.ID, m.Name, m.SourceKey, m.IsActive, complete, SkipEmpty); ok {
			plan.Claims = append(plan.Claims, Claim{Accelerator: accel, Kind: ClaimMapping, Mapping: m})
		}
	}
	for _, m := range in.Macros {
		reason := SkipEmpty
		complete := strings.TrimSpace(m.TriggerKey) != ""
		if complete && len(m.Actions) == 0 {
			complete = false
			reason = SkipNoActions
		}
		if accel, ok := consider(ClaimMacro, m.ID, m.Name, m.TriggerKey, m.IsActive, complete, reason); ok {
			plan.Claims = append(plan.Claims, Claim{Accelerator: accel, Kind: ClaimMacro, Macro: m})
		}
	}
	return plan
}
