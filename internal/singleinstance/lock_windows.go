//go:build windows

package singleinstance

import (
	"errors"
	"fmt"

	"gamevault/internal/userutil"

	"golang.org/x/sys/windows"
)

// Lock owns the named mutex that marks the running instance.
type Lock struct {
	name   string
	handle windows.Handle
}

// TryLock creates the named mutex. The mutex is only a marker, so its
// existence is what matters, not ownership. Returns ErrAlreadyRunning when
// another process created it first.
func TryLock(name string) (*Lock, error) {
	if name == "" {
		return nil, errors.New("mutex name is required")
	}
	name16, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("invalid mutex name %q: %w", name, err)
	}
	h, err := windows.CreateMutex(nil, false, name16)
	if err != nil {
		if h != 0 {
			_ = windows.CloseHandle(h)
		}
		if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("create mutex %q: %w", name, err)
	}
	return &Lock{name: name, handle: h}, nil
}

// Name returns the mutex name.
func (l *Lock) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// Release closes the mutex handle. Safe on a nil receiver and idempotent.
func (l *Lock) Release() error {
	if l == nil || l.handle == 0 {
		return nil
	}
	err := windows.CloseHandle(l.handle)
	l.handle = 0
	return err
}

// DefaultName returns the mutex for the current user in the current
// desktop session. Global hotkeys are per session, so a second session
// may run its own instance.
func DefaultName() string {
	return `Local\GameVault-` + userutil.CurrentUsername()
}
