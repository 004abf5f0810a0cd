package main

import (
	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/appforge/devserver/internal/ui"
)

var statusCopy bool

var statusCmd = &cobra.Command{
	Use:   "status <session-id>",
	Short: "Show a session's dev server status",
	Long: `Report whether a session's dev server is running, with pid, port and URL.

A recorded server whose process has since died is reported not-running and
its record is healed away.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusCopy, "copy", false, "Copy the server URL to the clipboard")
}

func runStatus(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	env, err := discoverEnv(cmd)
	if err != nil {
		return err
	}

	if rec, ok := loadRunfile(env.cfg, sessionID); ok {
		env.orch.Adopt(rec)
	}

	result, err := env.orch.Status(cmd.Context(), sessionID)
	if err != nil {
		return err
	}
	if !result.Running {
		removeRunfile(env.cfg, sessionID)
	}

	if jsonOutput(cmd) {
		printJSON(result)
		return nil
	}

	if !result.Running {
		ui.PrintInfo("No dev server is running for session %s", sessionID)
		ui.PrintNextSteps([]ui.NextStep{
			{Label: "Start one:", Command: "devserver start " + sessionID},
		})
		return nil
	}

	ui.PrintServerBox(sessionID, result.URL, result.PID, result.Port)

	if statusCopy && result.URL != "" {
		if cerr := clipboard.WriteAll(result.URL); cerr != nil {
			ui.PrintWarning("Failed to copy URL to clipboard: %v", cerr)
		} else {
			ui.PrintDim("URL copied to clipboard")
		}
	}
	return nil
}
