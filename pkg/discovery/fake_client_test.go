package discovery

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"thoreinstein.com/repodash/pkg/git"
)

// fakeClient answers queries from in-memory tables. Repository roots are
// detected on disk so walker tests can use real directory trees.
type fakeClient struct {
	mu sync.Mutex

	remotes    map[string]string
	changes    map[string]int
	ahead      map[string]int
	changesErr map[string]error
	aheadErr   map[string]error
	blockAhead map[string]bool

	// gate, when set, holds every ChangedPaths call until closed.
	gate chan struct{}

	probed []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		remotes:    make(map[string]string),
		changes:    make(map[string]int),
		ahead:      make(map[string]int),
		changesErr: make(map[string]error),
		aheadErr:   make(map[string]error),
		blockAhead: make(map[string]bool),
	}
}

func (f *fakeClient) IsRepositoryRoot(path string) bool {
	return git.IsWorkTreeRoot(path)
}

func (f *fakeClient) RemoteURL(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remotes[path], nil
}

func (f *fakeClient) ChangedPaths(ctx context.Context, path string) ([]git.ChangedPath, error) {
	f.mu.Lock()
	gate := f.gate
	f.probed = append(f.probed, path)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.changesErr[path]; err != nil {
		return nil, err
	}
	changes := make([]git.ChangedPath, f.changes[path])
	for i := range changes {
		changes[i] = git.ChangedPath{Code: "M", Path: filepath.Join("file", string(rune('a'+i)))}
	}
	return changes, nil
}

func (f *fakeClient) AheadCount(ctx context.Context, path string) (int, error) {
	f.mu.Lock()
	block := f.blockAhead[path]
	err := f.aheadErr[path]
	ahead := f.ahead[path]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err != nil {
		return 0, err
	}
	return ahead, nil
}

func (f *fakeClient) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.probed)
}

// recorder collects coordinator events.
type recorder struct {
	mu       sync.Mutex
	found    []string
	updated  []Record
	progress []int
	complete []Summary

	// onFound, when set, runs inside RepositoryFound.
	onFound func(path string)
}

func (r *recorder) RepositoryFound(path string) {
	r.mu.Lock()
	r.found = append(r.found, path)
	fn := r.onFound
	r.mu.Unlock()
	if fn != nil {
		fn(path)
	}
}

func (r *recorder) StatusUpdated(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, rec)
}

func (r *recorder) Progress(percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, percent)
}

func (r *recorder) ScanComplete(summary Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = append(r.complete, summary)
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
}

func mustCreateFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

// mustRepo creates a directory with a .git marker and returns its path.
func mustRepo(t *testing.T, path string) string {
	t.Helper()
	mustMkdir(t, filepath.Join(path, ".git"))
	return path
}
