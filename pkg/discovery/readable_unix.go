//go:build unix

package discovery

import "golang.org/x/sys/unix"

// readable reports whether the current user may list and enter dir.
func readable(dir string) bool {
	return unix.Access(dir, unix.R_OK|unix.X_OK) == nil
}
