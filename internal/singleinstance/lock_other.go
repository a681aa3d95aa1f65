//go:build !windows

package singleinstance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gamevault/internal/userutil"

	"golang.org/x/sys/unix"
)

const lockFilePerm = 0o600

// Lock holds an exclusive flock on the instance lock file.
type Lock struct {
	name string
	file *os.File
}

// TryLock takes a non-blocking exclusive flock on the file at name.
// Returns ErrAlreadyRunning if another process holds it.
func TryLock(name string) (*Lock, error) {
	if name == "" {
		return nil, errors.New("lock file path is required")
	}
	file, err := os.OpenFile(name, os.O_CREATE|os.O_RDWR, lockFilePerm)
	if err != nil {
		return nil, fmt.Errorf("open lock file %q: %w", name, err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("flock %q: %w", name, err)
	}
	if err := file.Truncate(0); err == nil {
		_, _ = file.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{name: name, file: file}, nil
}

// Release drops the flock. Safe to call on nil receiver and idempotent.
// The file itself is left in place so a racing TryLock never locks an
// unlinked inode.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(unlockErr, closeErr)
}

// Name returns the lock file path.
func (l *Lock) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// DefaultName returns the per-user lock file path.
func DefaultName() string {
	return filepath.Join(os.TempDir(), "gamevault-"+userutil.CurrentUsername()+".lock")
}
