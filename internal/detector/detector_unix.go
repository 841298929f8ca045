//go:build !windows

package detector

import (
	"bytes"
	"errors"
	"os"
	"strconv"
	"syscall"
)

// Alive returns true if a process with the given pid exists and is not a
// zombie. EPERM still counts as alive (the process exists, we just cannot
// signal it).
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if isZombie(pid) {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// isZombie reports whether /proc/<pid>/status shows state Z. On systems
// without procfs the check is a no-op and Alive falls back to kill(0).
func isZombie(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
