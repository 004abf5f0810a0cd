//go:build !windows

package devserver

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the command in its own process group so the whole
// tree (npm, the bundler it forks, any watchers) can be signalled together.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateTree sends SIGTERM to the process group.
func terminateTree(pid int) {
	syscall.Kill(-pid, syscall.SIGTERM)
}

// killTree sends SIGKILL to the process group.
func killTree(pid int) {
	syscall.Kill(-pid, syscall.SIGKILL)
}

// PidAlive reports whether a process with the given pid exists. Signal 0
// performs the existence check without delivering anything.
func PidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, syscall.Signal(0)) == nil
}
