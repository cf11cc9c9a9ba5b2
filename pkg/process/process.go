// Package process inspects and signals other processes by PID.
package process

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// IsProcessAlive reports whether a process with the given PID exists.
// A process owned by another user still counts as alive.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	// FindProcess always succeeds on Unix.
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 probes for existence: ESRCH means gone, EPERM means alive.
	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// ParsePID parses the content of a PID file.
func ParsePID(content []byte) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, fmt.Errorf("invalid pid %q: %w", strings.TrimSpace(string(content)), err)
	}
	return pid, nil
}

// Terminate sends SIGTERM to pid.
func Terminate(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send stop signal to %d: %w", pid, err)
	}
	return nil
}
