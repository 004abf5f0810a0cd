package main

import (
	"github.com/spf13/cobra"

	"github.com/appforge/devserver/internal/apppath"
	"github.com/appforge/devserver/internal/ui"
)

var reconcileDryRun bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Backfill session app paths from chat logs",
	Long: `Scan every stored session's message log for apps/<name> mentions and
correct stale or missing app paths. The latest mention wins; only
directories that actually exist with a manifest qualify.

With --dry-run the proposed changes are reported but nothing is written.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "Report changes without writing them")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	env, err := discoverEnv(cmd)
	if err != nil {
		return err
	}

	reconciler := &apppath.Reconciler{
		Resolver: apppath.NewResolver(env.cfg, env.projectRoot),
		Sessions: env.store,
		DryRun:   reconcileDryRun,
	}

	changes, err := reconciler.Run()
	if err != nil {
		if jsonOutput(cmd) {
			printJSON(map[string]interface{}{"error": err.Error()})
			return err
		}
		ui.PrintError("Reconciliation failed: %v", err)
		return err
	}

	if jsonOutput(cmd) {
		if changes == nil {
			changes = []apppath.Change{}
		}
		printJSON(map[string]interface{}{
			"changes": changes,
			"count":   len(changes),
			"dry_run": reconcileDryRun,
		})
		return nil
	}

	if len(changes) == 0 {
		ui.PrintSuccess("All session app paths are consistent")
		return nil
	}

	table := ui.NewTable("SESSION", "OLD PATH", "NEW PATH")
	table.SetMaxWidth(0, 36)
	for _, c := range changes {
		old := c.OldPath
		if old == "" {
			old = "-"
		}
		table.AddRow(c.SessionID, old, c.NewPath)
	}
	table.Render()
	ui.Println()

	if reconcileDryRun {
		ui.PrintInfo("%d change(s) proposed (dry run; nothing written)", len(changes))
		ui.PrintNextSteps([]ui.NextStep{
			{Label: "Apply them:", Command: "devserver reconcile"},
		})
	} else {
		ui.PrintSuccess("%d session(s) updated", len(changes))
	}
	return nil
}
