// Package singleinstance keeps one GameVault process per user. Windows uses
// a named kernel mutex; other platforms hold an flock on a file in the temp
// directory. The OS drops both when the owning process dies.
package singleinstance

import "errors"

// ErrAlreadyRunning is returned by TryLock when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")
