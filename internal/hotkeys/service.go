// Package hotkeys registers system-wide hotkeys with the OS and implements
// shortcuts.Service on top of them.
package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"gamevault/internal/shortcuts"
	"gamevault/internal/workerutil"
)

const (
	firstHotkeyID int32 = 0x4000
	// maxHotkeyID is the upper bound for application-defined hotkey IDs (Win32).
	maxHotkeyID int32 = 0xBFFF
)

// ErrAlreadyRegistered is returned when an accelerator is registered twice
// through the same Service.
var ErrAlreadyRegistered = errors.New("hotkey already registered")

// backend is the platform hotkey primitive. fire may be called from any
// goroutine, including a locked OS thread; it must not block.
type backend interface {
	register(id int32, binding Binding, fire func(shortcuts.KeyState)) error
	unregister(id int32) error
	close() error
}

type entry struct {
	id      int32
	binding Binding
	handler shortcuts.Handler
}

// Service implements shortcuts.Service with OS-level global hotkeys.
// Handlers run on their own goroutines with panic recovery, so a slow or
// crashing handler never stalls the OS message loop.
type Service struct {
	backend backend

	mu      sync.Mutex
	entries map[string]*entry
	nextID  int32
	closed  bool

	wg sync.WaitGroup
}

var _ shortcuts.Service = (*Service)(nil)
var _ shortcuts.RegistrationChecker = (*Service)(nil)

// NewService returns a Service backed by the platform hotkey API.
func NewService() *Service {
	return newServiceWithBackend(newBackend())
}

func newServiceWithBackend(b backend) *Service {
	return &Service{
		backend: b,
		entries: make(map[string]*entry),
		nextID:  firstHotkeyID,
	}
}

// Register binds handler to accel.
func (s *Service) Register(accel string, handler shortcuts.Handler) error {
	if handler == nil {
		return errors.New("hotkey handler is required")
	}
	binding, err := ParseBinding(accel)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("hotkey service is closed")
	}
	key := binding.Normalized()
	if _, ok := s.entries[key]; ok {
		return fmt.Errorf("%s: %w", key, ErrAlreadyRegistered)
	}
	id, err := s.allocateIDLocked()
	if err != nil {
		return err
	}

	e := &entry{id: id, binding: binding, handler: handler}
	if err := s.backend.register(id, binding, s.dispatcher(e)); err != nil {
		return fmt.Errorf("register hotkey %q failed: %w", key, err)
	}
	s.entries[key] = e
	slog.Debug("[hotkey] DEBUG registered", "accelerator", key, "hotkeyID", id)
	return nil
}

// Unregister releases accel. Unknown accelerators are ignored.
func (s *Service) Unregister(accel string) error {
	binding, err := ParseBinding(accel)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := binding.Normalized()
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	delete(s.entries, key)
	if err := s.backend.unregister(e.id); err != nil {
		return fmt.Errorf("unregister hotkey %q failed: %w", key, err)
	}
	slog.Debug("[hotkey] DEBUG unregistered", "accelerator", key, "hotkeyID", e.id)
	return nil
}

// IsRegistered reports whether accel is currently registered.
func (s *Service) IsRegistered(accel string) bool {
	binding, err := ParseBinding(accel)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[binding.Normalized()]
	return ok
}

// Registered returns every registered accelerator, sorted.
func (s *Service) Registered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for key := range s.entries {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}

// Close unregisters everything, stops the platform loop and waits for
// running handlers.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var errs []error
	for key, e := range s.entries {
		if err := s.backend.unregister(e.id); err != nil {
			errs = append(errs, fmt.Errorf("unregister hotkey %q failed: %w", key, err))
		}
	}
	clear(s.entries)
	errs = append(errs, s.backend.close())
	s.mu.Unlock()

	s.wg.Wait()
	return errors.Join(errs...)
}

func (s *Service) dispatcher(e *entry) func(shortcuts.KeyState) {
	name := "hotkey:" + e.binding.Normalized()
	return func(state shortcuts.KeyState) {
		workerutil.Go(&s.wg, name, func() { e.handler(state) }, nil)
	}
}

func (s *Service) allocateIDLocked() (int32, error) {
	inUse := make(map[int32]struct{}, len(s.entries))
	for _, e := range s.entries {
		inUse[e.id] = struct{}{}
	}
	span := maxHotkeyID - firstHotkeyID + 1
	for range span {
		id := s.nextID
		s.nextID++
		if s.nextID > maxHotkeyID {
			s.nextID = firstHotkeyID
		}
		if _, taken := inUse[id]; !taken {
			return id, nil
		}
	}
	return 0, fmt.Errorf("hotkey ID range exhausted (%d registrations)", len(s.entries))
}
