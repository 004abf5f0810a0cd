package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/appforge/devserver/internal/config"
	"github.com/appforge/devserver/internal/devserver"
)

// Run records live under <stateDir>/run/<sessionID>.json, one per started
// dev server. The orchestrator's registry dies with each CLI process, so
// these files are how a later invocation finds the pid to stop or report.
// Liveness is always re-verified against the pid; a record is a hint, not
// the truth.

// runfileDir returns the directory holding run records.
func runfileDir(cfg *config.Config) string {
	return filepath.Join(cfg.GetStateDir(), "run")
}

// runfilePath returns the run record path for one session.
func runfilePath(cfg *config.Config, sessionID string) string {
	return filepath.Join(runfileDir(cfg), sessionID+".json")
}

// writeRunfile records a started server so later invocations can find it.
//
// Parameters:
//   - cfg: Configuration supplying the state directory
//   - h: The handle to persist
//
// Returns:
//   - error: Any error that occurred
func writeRunfile(cfg *config.Config, h devserver.Handle) error {
	if err := os.MkdirAll(runfileDir(cfg), 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if err := os.WriteFile(runfilePath(cfg, h.SessionID), data, 0644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}

// loadRunfile reads a session's run record. Liveness is not checked here;
// callers adopt the handle into the orchestrator, whose registry prunes
// dead processes itself.
//
// Returns:
//   - devserver.Handle: The recorded handle
//   - bool: Whether a parseable record existed
func loadRunfile(cfg *config.Config, sessionID string) (devserver.Handle, bool) {
	data, err := os.ReadFile(runfilePath(cfg, sessionID))
	if err != nil {
		return devserver.Handle{}, false
	}

	var h devserver.Handle
	if err := json.Unmarshal(data, &h); err != nil {
		log.Debug("Removing corrupt run record", "session", sessionID, "error", err)
		removeRunfile(cfg, sessionID)
		return devserver.Handle{}, false
	}
	if h.SessionID == "" {
		h.SessionID = sessionID
	}
	return h, true
}

// loadRunfiles reads every parseable run record, sorted by session id.
// Corrupt files are removed on the way.
func loadRunfiles(cfg *config.Config) []devserver.Handle {
	entries, err := os.ReadDir(runfileDir(cfg))
	if err != nil {
		return nil
	}

	var out []devserver.Handle
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if h, ok := loadRunfile(cfg, strings.TrimSuffix(name, ".json")); ok {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// removeRunfile deletes a session's run record, if any.
func removeRunfile(cfg *config.Config, sessionID string) {
	_ = os.Remove(runfilePath(cfg, sessionID))
}
