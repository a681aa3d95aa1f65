package shortcuts

import (
	"fmt"
	"sync"
)

// fakeService records registrations the way an OS hotkey service would.
type fakeService struct {
	mu          sync.Mutex
	handlers    map[string]Handler
	registers   int
	unregisters int
	log         []string
	failOn      map[string]bool
}

func newFakeService() *fakeService {
	return &fakeService{handlers: make(map[string]Handler), failOn: make(map[string]bool)}
}

func (f *fakeService) Register(accel string, handler Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "register "+accel)
	if f.failOn[accel] {
		return fmt.Errorf("accelerator %s is held by another application", accel)
	}
	if _, ok := f.handlers[accel]; ok {
		return fmt.Errorf("accelerator %s already registered", accel)
	}
	f.registers++
	f.handlers[accel] = handler
	return nil
}

func (f *fakeService) Unregister(accel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "unregister "+accel)
	f.unregisters++
	delete(f.handlers, accel)
	return nil
}

func (f *fakeService) fire(accel string, state KeyState) bool {
	f.mu.Lock()
	handler, ok := f.handlers[accel]
	f.mu.Unlock()
	if ok {
		handler(state)
	}
	return ok
}

func (f *fakeService) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeService) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registers, f.unregisters
}

// checkingService also reports live registrations.
type checkingService struct {
	*fakeService
}

func (c checkingService) IsRegistered(accel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[accel]
	return ok
}
