//go:build windows

package devserver

import (
	"fmt"
	"os"
	"os/exec"
)

// setSysProcAttr is a no-op on Windows (no process groups via Setpgid);
// tree termination goes through taskkill instead.
func setSysProcAttr(cmd *exec.Cmd) {}

// terminateTree asks taskkill to end the process tree.
func terminateTree(pid int) {
	exec.Command("taskkill", "/T", "/PID", fmt.Sprintf("%d", pid)).Run()
}

// killTree forcefully ends the process tree.
func killTree(pid int) {
	exec.Command("taskkill", "/F", "/T", "/PID", fmt.Sprintf("%d", pid)).Run()
}

// PidAlive reports whether a process with the given pid exists. Unlike the
// Unix version, FindProcess on Windows opens a real handle and fails for
// pids that are gone.
func PidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
