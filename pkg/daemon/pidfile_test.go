package daemon

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thoreinstein.com/repodash/pkg/errors"
)

func testPIDFile(t *testing.T) *PIDFile {
	t.Helper()
	return &PIDFile{Path: filepath.Join(t.TempDir(), "run", "serve.pid")}
}

func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("sleep", "0.01")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	pid := cmd.Process.Pid
	_ = cmd.Wait()
	return pid
}

func TestPIDFile_AcquireRelease(t *testing.T) {
	p := testPIDFile(t)

	require.NoError(t, p.Acquire())

	pid, running := p.Running()
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	info, err := os.Stat(filepath.Dir(p.Path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	require.NoError(t, p.Release())
	_, err = os.Stat(p.Path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, p.Release(), "releasing twice is a no-op")
}

func TestPIDFile_AcquireReplacesStale(t *testing.T) {
	p := testPIDFile(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.Path), 0o700))

	for _, content := range []string{strconv.Itoa(deadPID(t)), "not-a-number"} {
		require.NoError(t, os.WriteFile(p.Path, []byte(content), 0o600))

		_, running := p.Running()
		assert.False(t, running, "content %q", content)

		require.NoError(t, p.Acquire())
		pid, err := p.Read()
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	}
}

func TestPIDFile_AcquireHeldByOther(t *testing.T) {
	p := testPIDFile(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(p.Path), 0o700))
	require.NoError(t, os.WriteFile(p.Path, []byte(strconv.Itoa(os.Getppid())), 0o600))

	err := p.Acquire()
	assert.True(t, errors.Is(err, ErrAlreadyRunning))
	assert.ErrorContains(t, err, strconv.Itoa(os.Getppid()))

	require.NoError(t, p.Release())
	_, err = os.Stat(p.Path)
	assert.NoError(t, err, "another process's PID file must survive Release")
}

func TestPIDFile_ReadMissing(t *testing.T) {
	_, err := testPIDFile(t).Read()
	assert.True(t, os.IsNotExist(err))
}

func TestDefaultPIDFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)
	assert.Equal(t, filepath.Join(dir, "repodash", "serve.pid"), DefaultPIDFile().Path)
}

func TestIsProcessRunning_InvalidPID(t *testing.T) {
	assert.False(t, isProcessRunning(0))
	assert.False(t, isProcessRunning(-1))
}
