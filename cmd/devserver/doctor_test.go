package main

import (
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/appforge/devserver/internal/config"
)

// writeFakeTool drops an executable shell script named name into dir.
func writeFakeTool(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("failed to write fake %s: %v", name, err)
	}
}

func TestCheckToolReportsVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
	dir := t.TempDir()
	writeFakeTool(t, dir, "node", "echo v20.11.1\n")
	t.Setenv("PATH", dir)

	check := checkTool("Node.js", "node")
	if check.Status != "ok" {
		t.Fatalf("Status = %q, want ok (message %q)", check.Status, check.Message)
	}
	if check.Message != "v20.11.1" {
		t.Errorf("Message = %q, want v20.11.1", check.Message)
	}
	if !strings.Contains(check.Details, dir) {
		t.Errorf("Details = %q, want path under %s", check.Details, dir)
	}
}

func TestCheckToolMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	check := checkTool("Node.js", "node")
	if check.Status != "error" {
		t.Errorf("Status = %q, want error", check.Status)
	}
}

func TestCheckToolVersionQueryFails(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
	dir := t.TempDir()
	writeFakeTool(t, dir, "npm", "exit 1\n")
	t.Setenv("PATH", dir)

	check := checkTool("npm", "npm")
	if check.Status != "warning" {
		t.Errorf("Status = %q, want warning", check.Status)
	}
}

func TestCheckConfigNoProject(t *testing.T) {
	check, cfg := checkConfig(t.TempDir(), false)
	if check.Status != "warning" {
		t.Errorf("Status = %q, want warning", check.Status)
	}
	if cfg == nil {
		t.Fatal("expected a usable default config")
	}
}

func TestCheckConfigFixScaffolds(t *testing.T) {
	dir := t.TempDir()

	check, _ := checkConfig(dir, true)
	if check.Status != "ok" {
		t.Fatalf("Status = %q, want ok (message %q)", check.Status, check.Message)
	}
	if _, err := os.Stat(filepath.Join(dir, ".appforge", "config.yaml")); err != nil {
		t.Errorf("expected scaffolded config file: %v", err)
	}
}

func TestCheckConfigRootWithoutFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".appforge"), 0o755); err != nil {
		t.Fatal(err)
	}

	check, _ := checkConfig(dir, false)
	if check.Status != "warning" {
		t.Errorf("Status = %q, want warning", check.Status)
	}
}

func TestCheckConfigParseError(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, ".appforge")
	if err := os.MkdirAll(marker, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(marker, "config.yaml"), []byte("workspace: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	check, _ := checkConfig(dir, false)
	if check.Status != "error" {
		t.Errorf("Status = %q, want error", check.Status)
	}
}

func TestCheckConfigFound(t *testing.T) {
	dir := t.TempDir()
	path, err := config.WriteDefault(dir)
	if err != nil {
		t.Fatal(err)
	}

	check, cfg := checkConfig(dir, false)
	if check.Status != "ok" {
		t.Fatalf("Status = %q, want ok (message %q)", check.Status, check.Message)
	}
	if !strings.Contains(check.Message, path) {
		t.Errorf("Message = %q, want mention of %s", check.Message, path)
	}
	if cfg.GetPortStart() != 5173 {
		t.Errorf("GetPortStart() = %d, want 5173", cfg.GetPortStart())
	}
}

func TestCheckAppsRootMissing(t *testing.T) {
	cfg := &config.Config{
		Workspace: config.WorkspaceConfig{AppsDir: filepath.Join(t.TempDir(), "apps")},
	}

	check := checkAppsRoot(cfg)
	if check.Status != "warning" {
		t.Errorf("Status = %q, want warning", check.Status)
	}
}

func TestCheckAppsRootCountsApps(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"app-a", "app-b"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// Stray files are not apps.
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Workspace: config.WorkspaceConfig{AppsDir: root}}

	check := checkAppsRoot(cfg)
	if check.Status != "ok" {
		t.Fatalf("Status = %q, want ok", check.Status)
	}
	if check.Details != "2 app director(ies)" {
		t.Errorf("Details = %q, want count of 2", check.Details)
	}
}

func TestCheckStateDirWritable(t *testing.T) {
	cfg := &config.Config{
		Workspace: config.WorkspaceConfig{StateDir: filepath.Join(t.TempDir(), "state")},
	}

	check := checkStateDir(cfg)
	if check.Status != "ok" {
		t.Fatalf("Status = %q (message %q)", check.Status, check.Message)
	}
	if _, err := os.Stat(filepath.Join(cfg.GetStateDir(), ".doctor-probe")); !os.IsNotExist(err) {
		t.Error("expected probe file to be cleaned up")
	}
}

func TestCheckPortWindow(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	occupied := ln.Addr().(*net.TCPAddr).Port

	busy := &config.Config{Server: config.ServerConfig{PortStart: occupied, PortWindow: 1}}
	if check := checkPortWindow(busy); check.Status != "error" {
		t.Errorf("occupied window: Status = %q, want error", check.Status)
	}

	roomy := &config.Config{Server: config.ServerConfig{PortStart: occupied, PortWindow: 10}}
	if check := checkPortWindow(roomy); check.Status != "ok" {
		t.Errorf("window with headroom: Status = %q, want ok", check.Status)
	}
}

func TestCheckTelemetry(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.TelemetryConfig
		wantStatus string
	}{
		{"disabled", config.TelemetryConfig{}, "ok"},
		{"enabled without endpoint", config.TelemetryConfig{Enabled: true}, "warning"},
		{"enabled with endpoint", config.TelemetryConfig{Enabled: true, Endpoint: "http://localhost:4318"}, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := checkTelemetry(&config.Config{Telemetry: tt.cfg})
			if check.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", check.Status, tt.wantStatus)
			}
		})
	}
}
