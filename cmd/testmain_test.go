package cmd

import (
	"os"
	"testing"
)

// TestMain isolates the cmd tests from the user's configuration: HOME points
// at a scratch directory and cached config is reloaded on every call.
func TestMain(m *testing.M) {
	home, err := os.MkdirTemp("", "repodash-cmd-test-")
	if err != nil {
		panic(err)
	}

	os.Setenv("GO_TEST", "true")
	os.Setenv("HOME", home)

	code := m.Run()

	os.Unsetenv("GO_TEST")
	os.RemoveAll(home)

	os.Exit(code)
}
