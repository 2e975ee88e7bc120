//go:build !unix

package daemon

import (
	"os"
)

// isProcessRunning is best-effort off unix: FindProcess only fails for
// handles that cannot be opened.
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
