//go:build !windows

package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const socketPerm = 0o600

var socketNamePattern = regexp.MustCompile(`(?i)^gamevault-[a-z0-9._-]{1,128}\.sock$`)

func defaultPipeNameFor(username string) string {
	return filepath.Join(os.TempDir(), "gamevault-"+username+".sock")
}

func isTrustedPipeName(name string) bool {
	return filepath.IsAbs(name) && socketNamePattern.MatchString(filepath.Base(name))
}

// listen binds a unix socket readable only by the current user. A stale
// socket file left by a crashed instance is removed; a live one is an error.
func listen(path string) (net.Listener, error) {
	if _, err := os.Lstat(path); err == nil {
		if conn, dialErr := net.DialTimeout("unix", path, 200*time.Millisecond); dialErr == nil {
			_ = conn.Close()
			return nil, fmt.Errorf("socket %s is already served by another process", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, socketPerm); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return listener, nil
}

func dial(path string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", path, timeout)
}
