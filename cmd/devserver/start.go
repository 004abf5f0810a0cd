package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/appforge/devserver/internal/devserver"
	"github.com/appforge/devserver/internal/ui"
)

var (
	startPath string
	startCopy bool
	startOpen bool
)

var startCmd = &cobra.Command{
	Use:   "start <session-id>",
	Short: "Start a session's dev server",
	Long: `Start (or observe) the dev server for an AppForge session.

The session's app directory is resolved, dependencies are installed on
first run, a free port is allocated, and the server is spawned and awaited.
The command then supervises the server in the foreground; press Ctrl+C to
stop it. Use another terminal (or the MCP surface) for status/list/stop.

A server already recorded by a previous invocation is reported instead of
respawned.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startPath, "path", "", "Explicit app directory (outranks every resolution strategy)")
	startCmd.Flags().BoolVar(&startCopy, "copy", false, "Copy the server URL to the clipboard")
	startCmd.Flags().BoolVar(&startOpen, "open", false, "Open the server URL in the browser")
}

func runStart(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	env, err := discoverEnv(cmd)
	if err != nil {
		return err
	}
	jsonOut := jsonOutput(cmd)
	debugEnabled, _ := cmd.Flags().GetBool("debug")

	// A record from a previous invocation makes start observe, not respawn.
	if rec, ok := loadRunfile(env.cfg, sessionID); ok {
		env.orch.Adopt(rec)
	}

	if debugEnabled && !jsonOut {
		env.orch.OnLine = func(_, stream, line string) {
			line = strings.TrimSpace(line)
			if line == "" {
				return
			}
			if stream == "stderr" {
				ui.PrintWarning("[dev][stderr] %s", line)
				return
			}
			ui.PrintDim("  [dev] %s", line)
		}
	}

	if !jsonOut && !debugEnabled {
		ui.StartSpinner(fmt.Sprintf("Starting dev server for session %s...", sessionID))
	}
	result, err := env.orch.Start(cmd.Context(), sessionID, startPath)
	ui.StopSpinner()
	if err != nil {
		return reportStartError(sessionID, err, jsonOut)
	}

	// Record the handle so other terminals can stop/status/list it.
	if h, ok := env.orch.Lookup(sessionID); ok {
		if werr := writeRunfile(env.cfg, h); werr != nil {
			log.Warn("Failed to write run record", "session", sessionID, "error", werr)
		}
	}

	if jsonOut {
		printJSON(result)
	} else {
		printStartResult(result)
	}

	if startCopy && result.URL != "" {
		if cerr := clipboard.WriteAll(result.URL); cerr != nil {
			ui.PrintWarning("Failed to copy URL to clipboard: %v", cerr)
		} else {
			ui.PrintDim("URL copied to clipboard")
		}
	}
	if startOpen && result.URL != "" {
		if oerr := ui.OpenBrowser(result.URL); oerr != nil {
			log.Debug("Failed to open browser", "error", oerr)
		}
	}

	if result.AlreadyRunning {
		// Another process supervises this server; nothing to wait on here.
		return nil
	}

	return supervise(env, sessionID, result.PID, jsonOut)
}

// printStartResult renders a successful start for humans.
func printStartResult(result devserver.StartResult) {
	if result.AlreadyRunning {
		ui.PrintInfo("%s", result.Message)
		return
	}

	ui.PrintSuccess("%s", result.Message)
	ui.PrintLink("URL", result.URL)
	if result.AppPath != "" {
		ui.PrintDim("App: %s (%s)", result.AppPath, result.Strategy)
	}
	ui.PrintDim("PID: %d  Port: %d", result.PID, result.Port)
}

// reportStartError maps typed start failures to styled messages and hints.
// The error is passed back so the process exits non-zero.
func reportStartError(sessionID string, err error, jsonOut bool) error {
	if jsonOut {
		printJSON(map[string]interface{}{
			"success":    false,
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return err
	}

	var notFound *devserver.NotFoundError
	var install *devserver.InstallError
	var spawn *devserver.SpawnError
	var earlyExit *devserver.EarlyExitError
	switch {
	case errors.As(err, &notFound):
		ui.PrintError("No app found for session %q (looked in %s)", notFound.SessionID, notFound.Path)
		ui.PrintNextSteps([]ui.NextStep{
			{Label: "See strategies tried:", Command: fmt.Sprintf("devserver resolve %s", sessionID)},
			{Label: "Point at a directory:", Command: fmt.Sprintf("devserver start %s --path <dir>", sessionID)},
		})
	case errors.As(err, &install):
		ui.PrintError("Dependency install failed in %s", install.Dir)
		if install.Output != "" {
			ui.PrintDim("%s", install.Output)
		}
	case errors.As(err, &spawn):
		ui.PrintError("Failed to start dev server: %v", spawn.Err)
	case errors.As(err, &earlyExit):
		ui.PrintError("%v", earlyExit)
		ui.PrintDim("Run with --debug to stream the server's output")
	case errors.Is(err, devserver.ErrPortExhausted):
		ui.PrintError("No free port found: %v", err)
		ui.PrintDim("Raise server.port_window in .appforge/config.yaml or stop stale servers")
	default:
		ui.PrintError("Failed to start dev server: %v", err)
	}
	return err
}

// supervise blocks until the server exits or the user interrupts. The first
// Ctrl+C stops the server gracefully; a second one force-exits.
func supervise(env *env, sessionID string, pid int, jsonOut bool) error {
	if !jsonOut {
		ui.Println()
		ui.PrintDim("Press Ctrl+C to stop the dev server")
	}

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			go func() {
				<-sigChan
				ui.Println()
				ui.PrintWarning("Force exiting...")
				os.Exit(130)
			}()

			if !jsonOut {
				ui.Println()
				ui.PrintInfo("Stopping dev server...")
			}
			result, err := env.orch.Stop(context.Background(), sessionID, 0)
			removeRunfile(env.cfg, sessionID)
			if err != nil {
				return err
			}
			if jsonOut {
				printJSON(result)
			} else if result.Stopped {
				ui.PrintSuccess("%s", result.Message)
			} else {
				ui.PrintWarning("%s", result.Message)
			}
			return nil

		case <-ticker.C:
			if devserver.PidAlive(pid) {
				continue
			}
			// Died out from under us (crash, external stop).
			removeRunfile(env.cfg, sessionID)
			if jsonOut {
				printJSON(map[string]interface{}{
					"session_id": sessionID,
					"is_running": false,
					"message":    "dev server exited",
				})
				return nil
			}
			ui.Println()
			ui.PrintWarning("Dev server exited")
			return nil
		}
	}
}
