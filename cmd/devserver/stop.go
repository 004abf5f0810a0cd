package main

import (
	"github.com/spf13/cobra"

	"github.com/appforge/devserver/internal/ui"
)

var stopPID int

var stopCmd = &cobra.Command{
	Use:   "stop <session-id>",
	Short: "Stop a session's dev server",
	Long: `Stop the dev server tracked for an AppForge session.

When --pid disagrees with the tracked process, both trees are stopped and a
composite message reports what happened to each. Stopping a server that
already exited succeeds (the operation is idempotent).`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

func init() {
	stopCmd.Flags().IntVar(&stopPID, "pid", 0, "Process id to stop (default: the tracked one)")
}

func runStop(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	env, err := discoverEnv(cmd)
	if err != nil {
		return err
	}
	jsonOut := jsonOutput(cmd)

	// Rehydrate the tracked handle recorded by the starting invocation, so
	// pid-mismatch and self-healing semantics apply across processes.
	if rec, ok := loadRunfile(env.cfg, sessionID); ok {
		env.orch.Adopt(rec)
	}

	if !jsonOut {
		ui.StartSpinner("Stopping dev server...")
	}
	result, err := env.orch.Stop(cmd.Context(), sessionID, stopPID)
	ui.StopSpinner()
	if err != nil {
		if jsonOut {
			printJSON(map[string]interface{}{"stopped": false, "error": err.Error()})
			return err
		}
		ui.PrintError("Failed to stop dev server: %v", err)
		return err
	}

	if _, stillTracked := env.orch.Lookup(sessionID); !stillTracked {
		removeRunfile(env.cfg, sessionID)
	}

	if jsonOut {
		printJSON(result)
		return nil
	}
	if result.Stopped {
		ui.PrintSuccess("%s", result.Message)
	} else {
		ui.PrintInfo("%s", result.Message)
	}
	return nil
}
