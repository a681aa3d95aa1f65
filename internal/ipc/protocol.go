// Package ipc carries control commands from gamevault-ctl (and a second
// GameVault launch) to the running app. Each connection carries exactly one
// newline-terminated JSON request followed by one JSON response.
//
// On Windows the transport is a per-user named pipe whose DACL admits only
// SYSTEM and the current user. Elsewhere it is a 0600 unix socket in the
// temp directory.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"

	"gamevault/internal/userutil"
)

// PipeEnvVar overrides the default pipe name when it passes validation.
const PipeEnvVar = "GAMEVAULT_PIPE"

// Control commands understood by the app.
const (
	CommandActivateWindow = "activate-window"
	CommandToggleOverlay  = "toggle-overlay"
	CommandRunMacro       = "run-macro"
	CommandCancelMacros   = "cancel-macros"
	CommandListShortcuts  = "list-shortcuts"
	CommandReload         = "reload"
	CommandStatus         = "status"
)

// ControlRequest is a single control command.
type ControlRequest struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// ControlResponse mirrors a CLI result so gamevault-ctl can relay it as-is.
type ControlResponse struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// OK builds a successful response.
func OK(stdout string) ControlResponse {
	return ControlResponse{Stdout: stdout}
}

// Fail builds a failed response with exit code 1.
func Fail(msg string) ControlResponse {
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	return ControlResponse{ExitCode: 1, Stderr: msg}
}

// CommandExecutor handles a control request and returns a response.
type CommandExecutor interface {
	Execute(ctx context.Context, req ControlRequest) ControlResponse
}

// ExecutorFunc adapts a function to CommandExecutor.
type ExecutorFunc func(ctx context.Context, req ControlRequest) ControlResponse

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req ControlRequest) ControlResponse {
	return f(ctx, req)
}

// DefaultPipeName returns the endpoint to use. A GAMEVAULT_PIPE value that
// passes validation wins; otherwise a per-user default is derived from the
// current username.
func DefaultPipeName() string {
	if v, ok := trustedPipeNameFromEnv(); ok {
		return v
	}
	return defaultPipeNameFor(userutil.CurrentUsername())
}

func trustedPipeNameFromEnv() (string, bool) {
	value := strings.TrimSpace(os.Getenv(PipeEnvVar))
	if value == "" {
		return "", false
	}
	if !isTrustedPipeName(value) {
		slog.Warn("[ipc] "+PipeEnvVar+" rejected: value does not match allowed pattern", "value", value)
		return "", false
	}
	return value, true
}

func decodeRequest(raw []byte) (ControlRequest, error) {
	var req ControlRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return ControlRequest{}, err
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Command == "" {
		return ControlRequest{}, errors.New("command is required")
	}
	if req.Args == nil {
		req.Args = []string{}
	}
	return req, nil
}

func decodeResponse(raw []byte) (ControlResponse, error) {
	var resp ControlResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ControlResponse{}, err
	}
	return resp, nil
}
