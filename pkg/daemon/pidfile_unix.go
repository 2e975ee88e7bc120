//go:build unix

package daemon

import (
	"golang.org/x/sys/unix"
)

// isProcessRunning sends signal 0 to pid. EPERM means the process exists
// but belongs to another user.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
