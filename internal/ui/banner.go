// Package ui provides the banner for the devserver CLI.
package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// tagline is the product tagline.
const tagline = "Session dev servers, supervised"

// PrintBanner prints the AppForge DevServer banner with version info.
//
// Parameters:
//   - version: The CLI version string to display
func PrintBanner(version string) {
	if quietMode {
		return
	}

	title := TitleStyle.Render("AppForge DevServer")
	sub := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render(tagline)

	fmt.Println(BoxStyle.Render(title + "\n" + sub))

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		PaddingLeft(2)
	fmt.Println(infoStyle.Render(fmt.Sprintf("Version: %s", version)))
	fmt.Println()
}

// GetHelpText returns the verbose help text for the CLI, used by `devserver --help`.
// Contains the curated command reference without the banner box.
func GetHelpText() string {
	ember := lipgloss.NewStyle().Foreground(Ember).Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	return fmt.Sprintf(`%s

%s
  %s     Start a session's dev server
  %s      Stop a session's dev server
  %s    Show liveness, pid, port, url
  %s                      List live dev servers

%s
  %s   Dry-run app-path resolution
  %s                 Backfill app paths from chat logs
  %s                  Manage local session records

%s
  %s                 Start MCP server for AI agent integration

%s
  %s                    Check the local environment
%s`,
		dim.Render(tagline+". One supervised dev server per chat session."),
		ember.Render("Quick Start:"),
		ember.Render("devserver start <session>"),
		ember.Render("devserver stop <session>"),
		ember.Render("devserver status <session>"),
		ember.Render("devserver list"),
		ember.Render("Paths:"),
		ember.Render("devserver resolve <session>"),
		ember.Render("devserver reconcile"),
		ember.Render("devserver sessions"),
		ember.Render("AI/LLM:"),
		ember.Render("devserver mcp serve"),
		ember.Render("Health:"),
		ember.Render("devserver doctor"),
		dim.Render(`Use "devserver --help" for the full list of commands.`),
	)
}
