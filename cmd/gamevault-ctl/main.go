// Command gamevault-ctl sends control commands to a running GameVault
// instance over its control pipe.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"gamevault/internal/ipc"
)

// Build information set via ldflags.
var (
	version = "dev"
	commit  = "none"
)

var sendFn = ipc.Send

// exitCodeError carries a non-zero exit code reported by the app.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func newRootCmd() *cobra.Command {
	var pipeName string

	root := &cobra.Command{
		Use:           "gamevault-ctl",
		Short:         "Control a running GameVault instance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&pipeName, "pipe", "", "control pipe name (default: per-user pipe, or $"+ipc.PipeEnvVar+")")

	simple := func(use, short, command string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return relay(cmd, pipeName, ipc.ControlRequest{Command: command})
			},
		}
	}

	root.AddCommand(
		simple("activate", "Bring the GameVault window to the front", ipc.CommandActivateWindow),
		simple("toggle-overlay", "Show or hide the overlay window", ipc.CommandToggleOverlay),
		simple("cancel", "Cancel every running macro", ipc.CommandCancelMacros),
		simple("list", "List live shortcut registrations", ipc.CommandListShortcuts),
		simple("reload", "Reload config.yaml and re-register shortcuts", ipc.CommandReload),
		simple("status", "Print the engine status as JSON", ipc.CommandStatus),
		&cobra.Command{
			Use:   "run <macro-id>",
			Short: "Run a stored macro once",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return relay(cmd, pipeName, ipc.ControlRequest{Command: ipc.CommandRunMacro, Args: args})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "gamevault-ctl %s (%s)\n", version, commit)
			},
		},
	)
	return root
}

// relay sends req and copies the app's output to the command's streams.
func relay(cmd *cobra.Command, pipeName string, req ipc.ControlRequest) error {
	if pipeName == "" {
		pipeName = ipc.DefaultPipeName()
	}
	resp, err := sendFn(pipeName, req)
	if err != nil {
		if ipc.IsConnectionError(err) {
			return fmt.Errorf("GameVault is not running (no server on %s)", pipeName)
		}
		return err
	}
	writeTo(cmd.OutOrStdout(), resp.Stdout)
	writeTo(cmd.ErrOrStderr(), resp.Stderr)
	if resp.ExitCode != 0 {
		return exitCodeError{code: resp.ExitCode}
	}
	return nil
}

func writeTo(w io.Writer, s string) {
	if s == "" {
		return
	}
	_, _ = io.WriteString(w, s)
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		var exitErr exitCodeError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
