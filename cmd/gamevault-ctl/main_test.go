package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gamevault/internal/ipc"
)

// NOT safe for t.Parallel(): tests replace sendFn.
func stubSend(t *testing.T, resp ipc.ControlResponse, err error) *[]ipc.ControlRequest {
	t.Helper()
	var sent []ipc.ControlRequest
	orig := sendFn
	sendFn = func(_ string, req ipc.ControlRequest) (ipc.ControlResponse, error) {
		sent = append(sent, req)
		return resp, err
	}
	t.Cleanup(func() { sendFn = orig })
	return &sent
}

func TestRunMapsSubcommandsToControlRequests(t *testing.T) {
	tests := []struct {
		args []string
		want ipc.ControlRequest
	}{
		{args: []string{"activate"}, want: ipc.ControlRequest{Command: ipc.CommandActivateWindow}},
		{args: []string{"toggle-overlay"}, want: ipc.ControlRequest{Command: ipc.CommandToggleOverlay}},
		{args: []string{"cancel"}, want: ipc.ControlRequest{Command: ipc.CommandCancelMacros}},
		{args: []string{"list"}, want: ipc.ControlRequest{Command: ipc.CommandListShortcuts}},
		{args: []string{"reload"}, want: ipc.ControlRequest{Command: ipc.CommandReload}},
		{args: []string{"status"}, want: ipc.ControlRequest{Command: ipc.CommandStatus}},
		{args: []string{"run", "m-1"}, want: ipc.ControlRequest{Command: ipc.CommandRunMacro, Args: []string{"m-1"}}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			sent := stubSend(t, ipc.OK("done\n"), nil)
			var stdout, stderr bytes.Buffer

			if code := run(tt.args, &stdout, &stderr); code != 0 {
				t.Fatalf("run() = %d, stderr = %q", code, stderr.String())
			}
			if diff := cmp.Diff([]ipc.ControlRequest{tt.want}, *sent); diff != "" {
				t.Fatalf("sent requests mismatch (-want +got):\n%s", diff)
			}
			if stdout.String() != "done\n" {
				t.Fatalf("stdout = %q, want relayed output", stdout.String())
			}
		})
	}
}

func TestRunRelaysFailure(t *testing.T) {
	stubSend(t, ipc.Fail("unknown command: bogus"), nil)
	var stdout, stderr bytes.Buffer

	if code := run([]string{"status"}, &stdout, &stderr); code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
	if stderr.String() != "unknown command: bogus\n" {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunReportsMissingServer(t *testing.T) {
	stubSend(t, ipc.ControlResponse{}, &os.PathError{Op: "open", Path: "gamevault", Err: os.ErrNotExist})
	var stdout, stderr bytes.Buffer

	if code := run([]string{"--pipe", "gamevault-test", "list"}, &stdout, &stderr); code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "GameVault is not running (no server on gamevault-test)") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunReportsTransportError(t *testing.T) {
	stubSend(t, ipc.ControlResponse{}, errors.New("decode response: unexpected EOF"))
	var stdout, stderr bytes.Buffer

	if code := run([]string{"status"}, &stdout, &stderr); code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
	if stderr.String() != "Error: decode response: unexpected EOF\n" {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRunValidatesArgs(t *testing.T) {
	sent := stubSend(t, ipc.OK(""), nil)
	var stdout, stderr bytes.Buffer

	if code := run([]string{"run"}, &stdout, &stderr); code != 1 {
		t.Fatalf("run() without macro id = %d, want 1", code)
	}
	if code := run([]string{"status", "extra"}, &stdout, &stderr); code != 1 {
		t.Fatalf("run() with extra args = %d, want 1", code)
	}
	if len(*sent) != 0 {
		t.Fatalf("requests sent for invalid args: %+v", *sent)
	}
}

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"version"}, &stdout, &stderr); code != 0 {
		t.Fatalf("run(version) = %d", code)
	}
	if !strings.HasPrefix(stdout.String(), "gamevault-ctl dev") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}
