// Package config provides project configuration management.
//
// This package handles reading and writing .appforge/config.yaml files and
// locating the project root that anchors the embedded-apps area.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MarkerDirName is the directory whose presence marks a project root.
	MarkerDirName = ".appforge"

	// ConfigFileName is the config file name inside the marker directory.
	ConfigFileName = "config.yaml"
)

// Config represents the .appforge/config.yaml file.
//
// Every field is optional; getters return documented defaults so an absent
// or partial file always yields a working configuration.
type Config struct {
	// Workspace contains filesystem layout settings.
	Workspace WorkspaceConfig `yaml:"workspace,omitempty"`

	// Server contains dev-server lifecycle settings.
	Server ServerConfig `yaml:"server,omitempty"`

	// Commands contains the install and dev commands run inside app directories.
	Commands CommandsConfig `yaml:"commands,omitempty"`

	// Telemetry contains tracing settings.
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty"`
}

// WorkspaceConfig contains filesystem layout settings.
type WorkspaceConfig struct {
	// AppsDir is the root directory holding generated app directories.
	AppsDir string `yaml:"apps_dir,omitempty"`

	// ProjectName is the platform's own directory name. Path heuristics
	// never resolve a session to this name.
	ProjectName string `yaml:"project_name,omitempty"`

	// EmbeddedAppsDir is the directory under the project root that holds
	// built-in example apps, relative to the project root.
	EmbeddedAppsDir string `yaml:"embedded_apps_dir,omitempty"`

	// StateDir is where session records and message logs live.
	StateDir string `yaml:"state_dir,omitempty"`
}

// ServerConfig contains dev-server lifecycle settings.
type ServerConfig struct {
	// PortStart is the first port tried when allocating.
	PortStart int `yaml:"port_start,omitempty"`

	// PortWindow is how many consecutive ports are probed before giving up.
	PortWindow int `yaml:"port_window,omitempty"`

	// ReadyTimeoutSecs bounds the wait for a ready URL in process output.
	ReadyTimeoutSecs int `yaml:"ready_timeout_secs,omitempty"`

	// InstallTimeoutSecs bounds the one-shot dependency install.
	InstallTimeoutSecs int `yaml:"install_timeout_secs,omitempty"`

	// KillGraceSecs is how long a process tree gets after SIGTERM before SIGKILL.
	KillGraceSecs int `yaml:"kill_grace_secs,omitempty"`
}

// CommandsConfig contains the commands run inside app directories.
type CommandsConfig struct {
	// Install is the dependency install command (default: npm install).
	Install []string `yaml:"install,omitempty,flow"`

	// Dev is the dev-server command (default: npm run dev). The allocated
	// port is appended as `-- --port <n>` and exported as PORT.
	Dev []string `yaml:"dev,omitempty,flow"`
}

// TelemetryConfig contains tracing settings.
type TelemetryConfig struct {
	// Enabled turns span export on. Span logging is always active at debug level.
	Enabled bool `yaml:"enabled,omitempty"`

	// Endpoint is the OTLP/HTTP base URL (e.g. http://localhost:4318).
	Endpoint string `yaml:"endpoint,omitempty"`

	// ServiceName overrides the reported service.name resource attribute.
	ServiceName string `yaml:"service_name,omitempty"`
}

// GetAppsDir returns the generated-apps root, defaulting to ~/AppForge/apps.
func (c *Config) GetAppsDir() string {
	if c.Workspace.AppsDir != "" {
		return c.Workspace.AppsDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, "AppForge", "apps")
}

// GetProjectName returns the self-referential project name, defaulting to "appforge".
func (c *Config) GetProjectName() string {
	if c.Workspace.ProjectName != "" {
		return c.Workspace.ProjectName
	}
	return "appforge"
}

// GetEmbeddedAppsDir returns the embedded-apps directory name, defaulting to "apps".
func (c *Config) GetEmbeddedAppsDir() string {
	if c.Workspace.EmbeddedAppsDir != "" {
		return c.Workspace.EmbeddedAppsDir
	}
	return "apps"
}

// GetStateDir returns the state directory, defaulting to ~/.appforge.
func (c *Config) GetStateDir() string {
	if c.Workspace.StateDir != "" {
		return c.Workspace.StateDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, MarkerDirName)
}

// GetPortStart returns the first port to try, defaulting to 5173.
func (c *Config) GetPortStart() int {
	if c.Server.PortStart > 0 {
		return c.Server.PortStart
	}
	return 5173
}

// GetPortWindow returns the probe window size, defaulting to 100.
func (c *Config) GetPortWindow() int {
	if c.Server.PortWindow > 0 {
		return c.Server.PortWindow
	}
	return 100
}

// GetReadyTimeout returns the readiness wait bound, defaulting to 30s.
func (c *Config) GetReadyTimeout() time.Duration {
	if c.Server.ReadyTimeoutSecs > 0 {
		return time.Duration(c.Server.ReadyTimeoutSecs) * time.Second
	}
	return 30 * time.Second
}

// GetInstallTimeout returns the install bound, defaulting to 10m.
func (c *Config) GetInstallTimeout() time.Duration {
	if c.Server.InstallTimeoutSecs > 0 {
		return time.Duration(c.Server.InstallTimeoutSecs) * time.Second
	}
	return 10 * time.Minute
}

// GetKillGrace returns the SIGTERM-to-SIGKILL grace period, defaulting to 2s.
func (c *Config) GetKillGrace() time.Duration {
	if c.Server.KillGraceSecs > 0 {
		return time.Duration(c.Server.KillGraceSecs) * time.Second
	}
	return 2 * time.Second
}

// GetInstallCommand returns the dependency install command.
func (c *Config) GetInstallCommand() []string {
	if len(c.Commands.Install) > 0 {
		return c.Commands.Install
	}
	return []string{"npm", "install"}
}

// GetDevCommand returns the dev-server command.
func (c *Config) GetDevCommand() []string {
	if len(c.Commands.Dev) > 0 {
		return c.Commands.Dev
	}
	return []string{"npm", "run", "dev"}
}

// GetServiceName returns the telemetry service name, defaulting to "appforge-devserver".
func (c *Config) GetServiceName() string {
	if c.Telemetry.ServiceName != "" {
		return c.Telemetry.ServiceName
	}
	return "appforge-devserver"
}

// Load reads a configuration file.
//
// Parameters:
//   - path: Path to the config.yaml file
//
// Returns:
//   - *Config: The loaded configuration
//   - error: Any error that occurred during loading
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Write writes a configuration file.
//
// Parameters:
//   - path: Path to write the config.yaml file
//   - cfg: The configuration to write
//
// Returns:
//   - error: Any error that occurred during writing
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# AppForge DevServer Configuration\n\n"
	if err := os.WriteFile(path, []byte(header+string(data)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// defaultConfigTemplate is the scaffolded config file. Commented entries show
// the built-in defaults without pinning them.
const defaultConfigTemplate = `# AppForge DevServer Configuration
#
# Every setting is optional; omitted values fall back to built-in defaults.

workspace:
  # apps_dir: ~/AppForge/apps
  # project_name: appforge
  # embedded_apps_dir: apps
  # state_dir: ~/.appforge

server:
  port_start: 5173
  port_window: 100
  ready_timeout_secs: 30
  install_timeout_secs: 600
  kill_grace_secs: 2

commands:
  install: [npm, install]
  dev: [npm, run, dev]

telemetry:
  enabled: false
  # endpoint: http://localhost:4318
`

// WriteDefault scaffolds .appforge/config.yaml under the given project root.
//
// Parameters:
//   - root: The project root directory to scaffold under
//
// Returns:
//   - string: Path of the written config file
//   - error: Error if the file already exists or cannot be written
func WriteDefault(root string) (string, error) {
	markerDir := filepath.Join(root, MarkerDirName)
	if err := os.MkdirAll(markerDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", MarkerDirName, err)
	}

	path := filepath.Join(markerDir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

// FindProjectRoot walks up from the given directory looking for a .appforge/ directory.
//
// Returns the first ancestor (or the directory itself) that contains a
// .appforge/ subdirectory.
//
// Parameters:
//   - dir: Starting directory to search from.
//
// Returns:
//   - string: The project root path containing .appforge/.
//   - error: Error if no .appforge/ directory is found before reaching /.
func FindProjectRoot(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	current := absDir
	for {
		markerDir := filepath.Join(current, MarkerDirName)
		if info, err := os.Stat(markerDir); err == nil && info.IsDir() {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("no %s/ directory found (searched from %s to /)", MarkerDirName, absDir)
		}
		current = parent
	}
}

// Discover locates and loads configuration starting from a directory.
//
// Walks up to the project root and reads .appforge/config.yaml if present.
// When no project root or config file exists, returns defaults with an empty
// project root; heuristics that need the project root are skipped in that case.
//
// Parameters:
//   - startDir: Directory to begin the search from.
//
// Returns:
//   - *Config: The loaded or default configuration (never nil).
//   - string: The project root, or "" when none was found.
//   - error: Error only when a config file exists but cannot be parsed.
func Discover(startDir string) (*Config, string, error) {
	root, err := FindProjectRoot(startDir)
	if err != nil {
		return &Config{}, "", nil
	}

	path := filepath.Join(root, MarkerDirName, ConfigFileName)
	if _, err := os.Stat(path); err != nil {
		return &Config{}, root, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, root, err
	}
	return cfg, root, nil
}
