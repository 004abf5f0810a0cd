// Package main provides the doctor command for CLI diagnostics.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/appforge/devserver/internal/config"
	"github.com/appforge/devserver/internal/devserver"
	"github.com/appforge/devserver/internal/ui"
)

// DoctorCheck represents a single diagnostic check result.
type DoctorCheck struct {
	// Name is the check name (e.g., "Node.js", "Project Config").
	Name string `json:"name"`

	// Status is the check status: "ok", "warning", "error".
	Status string `json:"status"`

	// Message is the human-readable result message.
	Message string `json:"message"`

	// Details contains additional information (optional).
	Details string `json:"details,omitempty"`
}

// DoctorResult contains all diagnostic check results.
type DoctorResult struct {
	// Checks contains all individual check results.
	Checks []DoctorCheck `json:"checks"`

	// Issues is the count of checks with status "error" or "warning".
	Issues int `json:"issues"`

	// Healthy is true if no errors were found.
	Healthy bool `json:"healthy"`
}

var doctorFix bool

// doctorCmd runs diagnostic checks on the local environment.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local environment",
	Long: `Run diagnostic checks on the devserver environment.

CHECKS PERFORMED:
  - Node.js and npm on PATH (with versions)
  - Project configuration (.appforge/config.yaml discoverable and valid?)
  - Apps root existence
  - State directory writability
  - Port window headroom (sample probe)
  - Telemetry endpoint configured or disabled

OUTPUT:
  Human-readable by default, JSON with --json flag.

EXAMPLES:
  devserver doctor          # Run all checks
  devserver doctor --fix    # Scaffold a missing config file
  devserver doctor --json   # Output as JSON for scripting`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Scaffold a default config file when none exists")
}

// runDoctor executes all diagnostic checks.
//
// Parameters:
//   - cmd: The cobra command being executed
//   - args: Command line arguments (unused)
//
// Returns:
//   - error: Non-nil when any check errored, so the exit code reflects health
func runDoctor(cmd *cobra.Command, args []string) error {
	jsonOut := jsonOutput(cmd)

	startDir, _ := cmd.Root().PersistentFlags().GetString("config")
	if startDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		startDir = cwd
	}

	if !jsonOut {
		ui.PrintBanner(version)
		ui.PrintInfo("Running diagnostic checks...")
		ui.Println()
	}

	result := DoctorResult{
		Checks:  make([]DoctorCheck, 0),
		Healthy: true,
	}
	record := func(check DoctorCheck) {
		result.Checks = append(result.Checks, check)
		switch check.Status {
		case "error":
			result.Healthy = false
			result.Issues++
		case "warning":
			result.Issues++
		}
	}

	record(checkTool("Node.js", "node"))
	record(checkTool("npm", "npm"))

	configCheck, cfg := checkConfig(startDir, doctorFix)
	record(configCheck)

	record(checkAppsRoot(cfg))
	record(checkStateDir(cfg))
	record(checkPortWindow(cfg))
	record(checkTelemetry(cfg))

	if jsonOut {
		printJSON(result)
	} else {
		printDoctorResults(result)
	}

	if !result.Healthy {
		return fmt.Errorf("health check failed")
	}
	return nil
}

// checkTool checks that an executable is on PATH and queries its version.
//
// Parameters:
//   - name: Display name for the check
//   - binary: The executable to look up
//
// Returns:
//   - DoctorCheck: The check result
func checkTool(name, binary string) DoctorCheck {
	check := DoctorCheck{Name: name, Status: "ok"}

	path, err := exec.LookPath(binary)
	if err != nil {
		check.Status = "error"
		check.Message = "Not found on PATH"
		check.Details = fmt.Sprintf("Install %s; dev servers are spawned through it", name)
		return check
	}

	out, err := exec.Command(binary, "--version").Output()
	if err != nil {
		check.Status = "warning"
		check.Message = "Found, but version query failed"
		check.Details = path
		return check
	}

	check.Message = strings.TrimSpace(string(out))
	check.Details = path
	return check
}

// checkConfig checks project config discovery and parsing. With fix set, a
// missing config file is scaffolded instead of warned about.
//
// Parameters:
//   - startDir: Directory the discovery walk starts from
//   - fix: Whether to scaffold a missing config file
//
// Returns:
//   - DoctorCheck: The check result
//   - *config.Config: The loaded (or default) configuration for later checks
func checkConfig(startDir string, fix bool) (DoctorCheck, *config.Config) {
	check := DoctorCheck{Name: "Project Config", Status: "ok"}

	root, err := config.FindProjectRoot(startDir)
	if err != nil {
		if fix {
			path, werr := config.WriteDefault(startDir)
			if werr != nil {
				check.Status = "error"
				check.Message = "Failed to scaffold config"
				check.Details = werr.Error()
				return check, &config.Config{}
			}
			check.Message = fmt.Sprintf("Scaffolded %s", path)
			cfg, _, _ := config.Discover(startDir)
			return check, cfg
		}
		check.Status = "warning"
		check.Message = "No project configuration"
		check.Details = "Run 'devserver doctor --fix' to scaffold .appforge/config.yaml (defaults apply meanwhile)"
		return check, &config.Config{}
	}

	path := filepath.Join(root, config.MarkerDirName, config.ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		if fix {
			written, werr := config.WriteDefault(root)
			if werr != nil {
				check.Status = "error"
				check.Message = "Failed to scaffold config"
				check.Details = werr.Error()
				return check, &config.Config{}
			}
			path = written
		} else {
			check.Status = "warning"
			check.Message = fmt.Sprintf("Project root found at %s, but no config file", root)
			check.Details = "Run 'devserver doctor --fix' to scaffold it (defaults apply meanwhile)"
			return check, &config.Config{}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		check.Status = "error"
		check.Message = "Config file does not parse"
		check.Details = err.Error()
		return check, &config.Config{}
	}

	check.Message = fmt.Sprintf("Found at %s", path)
	return check, cfg
}

// checkAppsRoot checks that the generated-apps root exists.
//
// Returns:
//   - DoctorCheck: The check result
func checkAppsRoot(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "Apps Root", Status: "ok"}
	root := cfg.GetAppsDir()

	info, err := os.Stat(root)
	if err != nil {
		check.Status = "warning"
		check.Message = "Does not exist yet"
		check.Details = fmt.Sprintf("Generated apps will appear under %s", root)
		return check
	}
	if !info.IsDir() {
		check.Status = "error"
		check.Message = fmt.Sprintf("%s is not a directory", root)
		return check
	}

	apps := 0
	if entries, err := os.ReadDir(root); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				apps++
			}
		}
	}
	check.Message = root
	check.Details = fmt.Sprintf("%d app director(ies)", apps)
	return check
}

// checkStateDir checks that the state directory can be written.
//
// Returns:
//   - DoctorCheck: The check result
func checkStateDir(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "State Dir", Status: "ok"}
	dir := cfg.GetStateDir()

	if err := os.MkdirAll(dir, 0755); err != nil {
		check.Status = "error"
		check.Message = "Cannot create state directory"
		check.Details = err.Error()
		return check
	}

	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		check.Status = "error"
		check.Message = "State directory is not writable"
		check.Details = err.Error()
		return check
	}
	_ = os.Remove(probe)

	check.Message = fmt.Sprintf("Writable at %s", dir)
	return check
}

// checkPortWindow probes the configured port window for headroom.
//
// Returns:
//   - DoctorCheck: The check result
func checkPortWindow(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "Port Window", Status: "ok"}
	start := cfg.GetPortStart()
	window := cfg.GetPortWindow()

	port, err := devserver.NewPortAllocator(window).Allocate(start)
	if err != nil {
		check.Status = "error"
		check.Message = fmt.Sprintf("No free port in %d..%d", start, start+window-1)
		check.Details = "Stop stale servers or raise server.port_window"
		return check
	}

	check.Message = fmt.Sprintf("Port %d available", port)
	check.Details = fmt.Sprintf("Scanning %d..%d", start, start+window-1)
	return check
}

// checkTelemetry checks the telemetry configuration for consistency.
//
// Returns:
//   - DoctorCheck: The check result
func checkTelemetry(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{Name: "Telemetry", Status: "ok"}

	if !cfg.Telemetry.Enabled {
		check.Message = "Disabled"
		check.Details = "Spans are logged at debug level only"
		return check
	}
	if strings.TrimSpace(cfg.Telemetry.Endpoint) == "" {
		check.Status = "warning"
		check.Message = "Enabled, but no endpoint configured"
		check.Details = "Set telemetry.endpoint to export spans"
		return check
	}

	check.Message = fmt.Sprintf("Exporting to %s", cfg.Telemetry.Endpoint)
	return check
}

// printDoctorResults prints the doctor results in human-readable format.
//
// Parameters:
//   - result: The doctor result to print
func printDoctorResults(result DoctorResult) {
	for _, check := range result.Checks {
		var icon string
		switch check.Status {
		case "ok":
			icon = ui.SuccessStyle.Render("✓")
		case "warning":
			icon = ui.WarningStyle.Render("⚠")
		case "error":
			icon = ui.ErrorStyle.Render("✗")
		}

		fmt.Printf("  %s %-16s %s\n", icon, check.Name+":", check.Message)
		if check.Details != "" {
			fmt.Printf("    %s\n", ui.DimStyle.Render(check.Details))
		}
	}

	ui.Println()

	if result.Issues > 0 {
		ui.PrintWarning("%d issue(s) found", result.Issues)
	} else {
		ui.PrintSuccess("All checks passed")
	}

	// Context-aware next steps based on check results
	var steps []ui.NextStep
	for _, check := range result.Checks {
		switch {
		case check.Name == "Node.js" && check.Status == "error":
			steps = append(steps, ui.NextStep{Label: "Install Node.js:", Command: "https://nodejs.org"})
		case check.Name == "Project Config" && check.Status == "warning":
			steps = append(steps, ui.NextStep{Label: "Scaffold config:", Command: "devserver doctor --fix"})
		case check.Name == "Port Window" && check.Status == "error":
			steps = append(steps, ui.NextStep{Label: "See what is running:", Command: "devserver list"})
		}
	}
	if result.Healthy && len(steps) == 0 {
		steps = append(steps, ui.NextStep{Label: "Start a dev server:", Command: "devserver start <session-id>"})
	}
	ui.PrintNextSteps(steps)
}
