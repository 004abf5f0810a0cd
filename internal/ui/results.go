// Package ui provides result rendering components.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// NextStep is a suggested follow-up command shown after an operation.
type NextStep struct {
	// Label describes what the command does.
	Label string

	// Command is the literal command line to run.
	Command string
}

// PrintNextSteps prints a "Next steps" block with aligned labels.
// Nothing is printed when the list is empty or quiet mode is on.
//
// Parameters:
//   - steps: The suggested follow-up commands
func PrintNextSteps(steps []NextStep) {
	if quietMode || len(steps) == 0 {
		return
	}

	maxLabel := 0
	for _, step := range steps {
		if len(step.Label) > maxLabel {
			maxLabel = len(step.Label)
		}
	}

	fmt.Println(DimStyle.Render("Next steps:"))
	cmdStyle := lipgloss.NewStyle().Foreground(Teal)
	for _, step := range steps {
		fmt.Printf("  %s  %s\n",
			DimStyle.Render(padRight(step.Label, maxLabel)),
			cmdStyle.Render(step.Command))
	}
}

// PrintServerBox prints a boxed summary for a running dev server.
//
// Parameters:
//   - sessionID: The owning session
//   - url: The server URL
//   - pid: The process id
//   - port: The bound port
func PrintServerBox(sessionID, url string, pid, port int) {
	if quietMode {
		return
	}

	title := BoxTitleStyle.Render("Dev server running")
	lines := fmt.Sprintf("%s\nSession: %s\nURL:     %s\nPID:     %d  Port: %d",
		title, sessionID, LinkStyle.Render(url), pid, port)
	fmt.Println(BoxStyle.Render(lines))
}
