//go:build !windows

package controller

import (
	"os/exec"
	"syscall"
)

const (
	sigTerm = syscall.SIGTERM
	sigKill = syscall.SIGKILL
)

// setProcGroup makes the child the leader of its own process group so
// signals reach the whole tree, including anything spawned via sh -c.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals the child's process group, falling back to the
// single pid when the group is gone or was never ours (a record that
// survived a supervisor restart may point at a non-leader pid).
func signalGroup(pid int, sig syscall.Signal) {
	if err := syscall.Kill(-pid, sig); err != nil {
		_ = syscall.Kill(pid, sig)
	}
}
