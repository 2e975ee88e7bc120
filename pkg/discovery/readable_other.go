//go:build !unix

package discovery

// readable defers to the ReadDir error on platforms without access(2).
func readable(string) bool {
	return true
}
