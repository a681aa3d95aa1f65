//go:build windows

package ipc

import (
	"errors"
	"fmt"
	"net"
	"os/user"
	"regexp"
	"strings"
	"time"

	"github.com/Microsoft/go-winio"
)

const defaultPipePrefix = `\\.\pipe\GameVault-`

var pipeNamePattern = regexp.MustCompile(`(?i)^\\\\\.\\pipe\\GameVault-[a-z0-9._-]{1,128}$`)

func defaultPipeNameFor(username string) string {
	return defaultPipePrefix + username
}

func isTrustedPipeName(name string) bool {
	return pipeNamePattern.MatchString(name)
}

// listen creates a Named Pipe listener restricted to the current user. The
// DACL grants full access only to SYSTEM and the current user's SID.
func listen(pipeName string) (net.Listener, error) {
	securityDescriptor, err := pipeSecurityDescriptor()
	if err != nil {
		return nil, err
	}
	return winio.ListenPipe(pipeName, &winio.PipeConfig{
		SecurityDescriptor: securityDescriptor,
		MessageMode:        false,
		InputBufferSize:    int32(maxPipeRequestBytes),
		OutputBufferSize:   int32(maxPipeResponseBytes),
	})
}

func dial(pipeName string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(pipeName, &timeout)
}

var validSIDPattern = regexp.MustCompile(`^S-1(-\d+)+$`)

func pipeSecurityDescriptor() (string, error) {
	current, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("resolve current user: %w", err)
	}
	sid := strings.TrimSpace(current.Uid)
	if sid == "" {
		return "", errors.New("current user SID is unavailable")
	}
	if !validSIDPattern.MatchString(sid) {
		return "", fmt.Errorf("current user SID has unexpected format: %s", sid)
	}
	// D:P protected DACL, SYSTEM and the current user only.
	return fmt.Sprintf("D:P(A;;GA;;;SY)(A;;GA;;;%s)", sid), nil
}
