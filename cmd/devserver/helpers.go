package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/appforge/devserver/internal/config"
	"github.com/appforge/devserver/internal/devserver"
	"github.com/appforge/devserver/internal/store"
	"github.com/appforge/devserver/internal/telemetry"
)

// env bundles the per-invocation dependencies most commands need.
type env struct {
	cfg         *config.Config
	projectRoot string
	store       *store.Store
	orch        *devserver.Orchestrator
}

// telemetryShutdown flushes pending spans; set once by setupTelemetry.
var telemetryShutdown func(context.Context) error

// discoverEnv locates configuration starting from --config (or the working
// directory) and wires a store and orchestrator against it. Telemetry is
// initialized from the discovered config as a side effect.
//
// Parameters:
//   - cmd: The command being executed, for flag access
//
// Returns:
//   - *env: The wired dependencies
//   - error: Error when discovery or config parsing fails
func discoverEnv(cmd *cobra.Command) (*env, error) {
	startDir, _ := cmd.Root().PersistentFlags().GetString("config")
	if startDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		startDir = cwd
	}

	cfg, projectRoot, err := config.Discover(startDir)
	if err != nil {
		return nil, err
	}
	setupTelemetry(cfg)

	st := store.NewWithDir(cfg.GetStateDir())
	return &env{
		cfg:         cfg,
		projectRoot: projectRoot,
		store:       st,
		orch:        devserver.NewOrchestrator(cfg, projectRoot, st),
	}, nil
}

// setupTelemetry installs the tracer provider once per process.
func setupTelemetry(cfg *config.Config) {
	if telemetryShutdown != nil {
		return
	}
	telemetryShutdown = telemetry.Setup(cfg, version)
}

// shutdownTelemetry flushes the tracer provider, if one was installed.
func shutdownTelemetry() {
	if telemetryShutdown == nil {
		return
	}
	if err := telemetryShutdown(context.Background()); err != nil {
		log.Debug("Telemetry shutdown failed", "error", err)
	}
}

// jsonOutput reports whether the global --json flag is set.
func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Root().PersistentFlags().GetBool("json")
	return v
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error("Failed to marshal output", "error", err)
		return
	}
	fmt.Println(string(data))
}
