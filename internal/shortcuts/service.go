// Package shortcuts owns global hotkey registration for key mappings, macros
// and app-level actions.
//
// The engine side is split in two: BuildPlan is a pure function from the
// previously owned accelerators and the desired inputs to a Plan, and Apply
// executes a Plan against a Service and returns the new OwnedSet. Registry
// wraps both with a debounce and teardown guarantees.
package shortcuts

import "slices"

// KeyState is the transition reported to a Handler.
type KeyState int

const (
	Pressed KeyState = iota
	Released
)

func (s KeyState) String() string {
	if s == Released {
		return "released"
	}
	return "pressed"
}

// Handler receives key transitions for one registered accelerator.
type Handler func(state KeyState)

// Service is the OS-level global shortcut service.
type Service interface {
	Register(accel string, handler Handler) error
	Unregister(accel string) error
}

// RegistrationChecker is implemented by services that can report whether an
// accelerator is currently registered.
type RegistrationChecker interface {
	IsRegistered(accel string) bool
}

// OwnedSet is an insertion-ordered set of accelerators.
type OwnedSet struct {
	order []string
	index map[string]struct{}
}

// NewOwnedSet returns a set holding accels in order, without duplicates.
func NewOwnedSet(accels ...string) OwnedSet {
	var s OwnedSet
	for _, accel := range accels {
		s.Add(accel)
	}
	return s
}

// Add inserts accel and reports whether it was new.
func (s *OwnedSet) Add(accel string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[accel]; ok {
		return false
	}
	s.index[accel] = struct{}{}
	s.order = append(s.order, accel)
	return true
}

// Has reports whether accel is in the set.
func (s OwnedSet) Has(accel string) bool {
	_, ok := s.index[accel]
	return ok
}

// Len returns the number of accelerators.
func (s OwnedSet) Len() int { return len(s.order) }

// List returns a copy of the accelerators in insertion order.
func (s OwnedSet) List() []string { return slices.Clone(s.order) }
