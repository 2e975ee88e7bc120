package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"thoreinstein.com/repodash/pkg/errors"
)

// ErrAlreadyRunning is returned by Acquire while another backend holds the
// PID file.
var ErrAlreadyRunning = errors.New("repodash backend already running")

// PIDFile records the process ID of a running `repodash serve`.
type PIDFile struct {
	Path string
}

// DefaultPIDFile returns the PID file under $XDG_RUNTIME_DIR, or the system
// temp directory when that is unset.
func DefaultPIDFile() *PIDFile {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return &PIDFile{Path: filepath.Join(dir, "repodash", "serve.pid")}
}

// Acquire writes the current PID. A file left behind by a dead process, or
// one that does not hold a PID, is replaced.
func (p *PIDFile) Acquire() error {
	if pid, ok := p.Running(); ok && pid != os.Getpid() {
		return errors.Wrapf(ErrAlreadyRunning, "PID %d", pid)
	}

	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	if err := os.WriteFile(p.Path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600); err != nil {
		return errors.Wrap(err, "failed to write PID file")
	}
	return nil
}

// Read returns the recorded PID. A missing file yields an error satisfying
// os.IsNotExist.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Wrapf(err, "malformed PID file %s", p.Path)
	}
	return pid, nil
}

// Running returns the recorded PID and whether that process is alive.
func (p *PIDFile) Running() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	return pid, isProcessRunning(pid)
}

// Release removes the file if it still records this process.
func (p *PIDFile) Release() error {
	pid, err := p.Read()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove PID file")
	}
	return nil
}
