package main

import (
	"github.com/spf13/cobra"

	"github.com/appforge/devserver/internal/ui"
)

var resolvePath string

var resolveCmd = &cobra.Command{
	Use:   "resolve <session-id>",
	Short: "Dry-run app-path resolution for a session",
	Long: `Resolve the app directory a start would use, without starting anything.

Shows the winning strategy: explicit-path, persisted-path, exact-name,
embedded-app, normalized-name, substring, time-proximity, or default when
nothing matched.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolvePath, "path", "", "Explicit app directory to test against the pipeline")
}

func runResolve(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	env, err := discoverEnv(cmd)
	if err != nil {
		return err
	}

	res, err := env.orch.Resolve(cmd.Context(), sessionID, resolvePath)
	if err != nil {
		if jsonOutput(cmd) {
			printJSON(map[string]interface{}{"error": err.Error()})
			return err
		}
		ui.PrintError("Resolution failed: %v", err)
		return err
	}

	if jsonOutput(cmd) {
		printJSON(map[string]interface{}{
			"session_id": sessionID,
			"path":       res.Path,
			"strategy":   string(res.Strategy),
			"matched":    res.Matched,
		})
		return nil
	}

	if res.Matched {
		ui.PrintSuccess("Resolved via %s", res.Strategy)
		ui.PrintInfo("Path: %s", res.Path)
	} else {
		ui.PrintWarning("No existing app matched; the default path would be used")
		ui.PrintInfo("Path: %s", res.Path)
		ui.PrintNextSteps([]ui.NextStep{
			{Label: "Point at a directory:", Command: "devserver start " + sessionID + " --path <dir>"},
			{Label: "Backfill from chat logs:", Command: "devserver reconcile --dry-run"},
		})
	}
	return nil
}
