package devserver

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/appforge/devserver/internal/apppath"
	"github.com/appforge/devserver/internal/config"
)

// installedMarker is the directory whose presence means dependencies are
// already installed and the one-shot install step can be skipped.
const installedMarker = "node_modules"

// installOutputTail bounds how much install output is carried in an
// InstallError. npm failures bury the useful lines at the end.
const installOutputTail = 2000

// pollInterval is how often Stop re-checks a terminated pid.
const pollInterval = 50 * time.Millisecond

// Process is a spawned dev server. Stdout and Stderr are captured pipes
// consumed by AwaitReady's scanners; Exit receives the Wait result exactly
// once.
type Process struct {
	// PID is the spawned process id (the group leader of the tree).
	PID int

	// Dir is the app directory the server runs in.
	Dir string

	// Port is the port the server was asked to bind.
	Port int

	// Stdout and Stderr are the captured output streams.
	Stdout io.Reader
	Stderr io.Reader

	// Exit is resolved with the process's Wait result when it terminates.
	Exit <-chan error

	// OnLine, when set, observes every line scanned from either stream.
	OnLine func(stream, line string)
}

// Supervisor spawns and terminates dev-server processes. Each process runs
// in its own group so termination reaches the children dev tooling forks.
type Supervisor struct {
	// InstallCommand is the one-shot dependency install command.
	InstallCommand []string

	// DevCommand is the dev-server command; the allocated port is appended
	// after a "--" separator and exported as PORT.
	DevCommand []string

	// InstallTimeout bounds the install step.
	InstallTimeout time.Duration

	// KillGrace is how long a terminated tree gets before being killed.
	KillGrace time.Duration
}

// NewSupervisor creates a supervisor from project configuration.
func NewSupervisor(cfg *config.Config) *Supervisor {
	return &Supervisor{
		InstallCommand: cfg.GetInstallCommand(),
		DevCommand:     cfg.GetDevCommand(),
		InstallTimeout: cfg.GetInstallTimeout(),
		KillGrace:      cfg.GetKillGrace(),
	}
}

// EnsureDeps runs the install command in dir when the dependency manifest is
// present but the installed marker is not. The install is synchronous; a
// failure aborts the start before anything is spawned.
//
// Returns:
//   - error: *InstallError carrying the tail of the tool's output
func (s *Supervisor) EnsureDeps(ctx context.Context, dir string) error {
	if _, err := os.Stat(filepath.Join(dir, installedMarker)); err == nil {
		return nil
	}
	if !apppath.HasManifest(dir) {
		return nil
	}

	log.Info("Installing dependencies", "dir", dir, "command", s.InstallCommand)

	ctx, cancel := context.WithTimeout(ctx, s.InstallTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.InstallCommand[0], s.InstallCommand[1:]...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &InstallError{Dir: dir, Output: tail(out, installOutputTail), Err: err}
	}
	return nil
}

// Start spawns the dev server in dir, bound to port, with both output
// streams captured. The process is deliberately not tied to ctx: a caller
// timing out after the server came up must not tear it down (the context is
// only consulted before spawning).
//
// Returns:
//   - *Process: The running process with captured streams and exit signal
//   - error: *SpawnError when the process could not be started
func (s *Supervisor) Start(ctx context.Context, dir string, port int) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SpawnError{Dir: dir, Err: err}
	}
	if len(s.DevCommand) == 0 {
		return nil, &SpawnError{Dir: dir, Err: fmt.Errorf("no dev command configured")}
	}

	// npm swallows flags unless they come after "--"; the PORT variable
	// covers tools that ignore the flag.
	args := append([]string{}, s.DevCommand[1:]...)
	args = append(args, "--", "--port", strconv.Itoa(port))

	cmd := exec.Command(s.DevCommand[0], args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), fmt.Sprintf("PORT=%d", port))
	setSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Dir: dir, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Dir: dir, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Dir: dir, Err: err}
	}

	exit := make(chan error, 1)
	go func() {
		exit <- cmd.Wait()
	}()

	log.Debug("Dev server spawned", "dir", dir, "port", port, "pid", cmd.Process.Pid)

	return &Process{
		PID:    cmd.Process.Pid,
		Dir:    dir,
		Port:   port,
		Stdout: stdout,
		Stderr: stderr,
		Exit:   exit,
	}, nil
}

// Stop terminates the process tree rooted at pid and waits for it to go
// away. Stopping a pid that already exited is success, not an error.
//
// Returns:
//   - bool: Whether the tree is gone
//   - string: A human-readable account of what happened
func (s *Supervisor) Stop(pid int) (bool, string) {
	if !PidAlive(pid) {
		return true, fmt.Sprintf("process %d already exited", pid)
	}

	terminateTree(pid)
	if waitGone(pid, s.KillGrace) {
		return true, fmt.Sprintf("stopped process %d", pid)
	}

	log.Warn("Process tree did not exit after terminate, killing", "pid", pid)
	killTree(pid)
	if waitGone(pid, s.KillGrace) {
		return true, fmt.Sprintf("force-killed process %d", pid)
	}

	return false, fmt.Sprintf("process %d did not exit", pid)
}

// waitGone polls until the pid disappears or the grace period elapses.
func waitGone(pid int, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !PidAlive(pid) {
			return true
		}
		time.Sleep(pollInterval)
	}
	return !PidAlive(pid)
}

// tail returns the last n bytes of b as a string.
func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
