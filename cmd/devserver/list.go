package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/appforge/devserver/internal/devserver"
	"github.com/appforge/devserver/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List live dev servers",
	Long: `List every dev server recorded on this machine that is still running.

Records whose process has died are healed away as a side effect.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	env, err := discoverEnv(cmd)
	if err != nil {
		return err
	}

	records := loadRunfiles(env.cfg)
	for _, rec := range records {
		env.orch.Adopt(rec)
	}

	live := env.orch.List(cmd.Context())

	// Heal records for servers that are gone.
	liveSet := make(map[string]bool, len(live))
	for _, h := range live {
		liveSet[h.SessionID] = true
	}
	for _, rec := range records {
		if !liveSet[rec.SessionID] {
			removeRunfile(env.cfg, rec.SessionID)
		}
	}

	if jsonOutput(cmd) {
		if live == nil {
			live = []devserver.Handle{}
		}
		printJSON(map[string]interface{}{
			"servers": live,
			"count":   len(live),
		})
		return nil
	}

	if len(live) == 0 {
		ui.PrintInfo("No dev servers are running")
		ui.PrintNextSteps([]ui.NextStep{
			{Label: "Start one:", Command: "devserver start <session-id>"},
		})
		return nil
	}

	table := ui.NewTable("SESSION", "PID", "PORT", "URL", "UPTIME")
	table.SetMaxWidth(0, 36)
	table.SetMaxWidth(3, 40)
	for _, h := range live {
		table.AddRow(
			h.SessionID,
			strconv.Itoa(h.PID),
			strconv.Itoa(h.Port),
			h.URL,
			uptime(h.StartedAt),
		)
	}
	table.Render()
	ui.Println()
	ui.PrintDim("%d dev server(s) running", len(live))
	return nil
}

// uptime formats how long a server has been up, coarsely.
func uptime(startedAt time.Time) string {
	if startedAt.IsZero() {
		return "-"
	}
	d := time.Since(startedAt)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
