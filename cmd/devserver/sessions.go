package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/appforge/devserver/internal/store"
	"github.com/appforge/devserver/internal/ui"
)

var sessionsAddAppPath string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage local session records",
	Long: `Manage the session records in sessions.json.

Records are normally written by the AppForge platform; these commands exist
for local development and repair.`,
}

var sessionsAddCmd = &cobra.Command{
	Use:   "add [session-id]",
	Short: "Add a session record (generates a UUID when no id is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSessionsAdd,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List session records",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsRemoveCmd = &cobra.Command{
	Use:   "remove <session-id>",
	Short: "Remove a session record",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsRemove,
}

var sessionsRemoveForce bool

func init() {
	sessionsAddCmd.Flags().StringVar(&sessionsAddAppPath, "app-path", "", "Pre-resolved app directory for the record")
	sessionsRemoveCmd.Flags().BoolVarP(&sessionsRemoveForce, "force", "f", false, "Skip the confirmation prompt")

	sessionsCmd.AddCommand(sessionsAddCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsRemoveCmd)
}

func runSessionsAdd(cmd *cobra.Command, args []string) error {
	env, err := discoverEnv(cmd)
	if err != nil {
		return err
	}

	var id string
	if len(args) > 0 {
		id = args[0]
	}

	sess, err := env.store.Add(store.Session{ID: id, AppPath: sessionsAddAppPath})
	if err != nil {
		if jsonOutput(cmd) {
			printJSON(map[string]interface{}{"error": err.Error()})
			return err
		}
		ui.PrintError("Failed to add session: %v", err)
		return err
	}

	if jsonOutput(cmd) {
		printJSON(sess)
		return nil
	}
	ui.PrintSuccess("Added session %s", sess.ID)
	if sess.AppPath != "" {
		ui.PrintDim("App path: %s", sess.AppPath)
	}
	ui.PrintNextSteps([]ui.NextStep{
		{Label: "Start its dev server:", Command: "devserver start " + sess.ID},
	})
	return nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	env, err := discoverEnv(cmd)
	if err != nil {
		return err
	}

	sessions, err := env.store.Sessions()
	if err != nil {
		if jsonOutput(cmd) {
			printJSON(map[string]interface{}{"error": err.Error()})
			return err
		}
		ui.PrintError("Failed to read sessions: %v", err)
		return err
	}

	if jsonOutput(cmd) {
		if sessions == nil {
			sessions = []store.Session{}
		}
		printJSON(map[string]interface{}{
			"sessions": sessions,
			"count":    len(sessions),
		})
		return nil
	}

	if len(sessions) == 0 {
		ui.PrintInfo("No session records")
		ui.PrintNextSteps([]ui.NextStep{
			{Label: "Add one:", Command: "devserver sessions add"},
		})
		return nil
	}

	table := ui.NewTable("ID", "CREATED", "APP PATH")
	table.SetMaxWidth(0, 36)
	for _, sess := range sessions {
		created := "-"
		if !sess.CreatedAt.IsZero() {
			created = sess.CreatedAt.Local().Format(time.DateTime)
		}
		appPath := sess.AppPath
		if appPath == "" {
			appPath = "-"
		}
		table.AddRow(sess.ID, created, appPath)
	}
	table.Render()
	ui.Println()
	ui.PrintDim("%d session(s)", len(sessions))
	return nil
}

func runSessionsRemove(cmd *cobra.Command, args []string) error {
	env, err := discoverEnv(cmd)
	if err != nil {
		return err
	}

	id := args[0]

	if !sessionsRemoveForce && !jsonOutput(cmd) {
		confirmed, perr := ui.PromptConfirm(fmt.Sprintf("Remove session record %s?", id), false)
		if perr != nil {
			return perr
		}
		if !confirmed {
			ui.PrintInfo("Aborted")
			return nil
		}
	}

	if err := env.store.Remove(id); err != nil {
		if jsonOutput(cmd) {
			printJSON(map[string]interface{}{"error": err.Error()})
			return err
		}
		ui.PrintError("Failed to remove session: %v", err)
		return err
	}

	if jsonOutput(cmd) {
		printJSON(map[string]interface{}{"removed": id})
		return nil
	}
	ui.PrintSuccess("Removed session %s", id)
	return nil
}
