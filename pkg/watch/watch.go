// Package watch re-probes repositories when their git metadata changes.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"thoreinstein.com/repodash/pkg/discovery"
	"thoreinstein.com/repodash/pkg/git"
)

// DefaultDebounce is the quiet period after the last event before a
// repository is re-probed.
const DefaultDebounce = 500 * time.Millisecond

// Reprober refreshes the record of one repository.
type Reprober interface {
	Reprobe(ctx context.Context, path string) (discovery.Record, error)
}

// Watcher watches the working tree root and git directory of each tracked
// repository and triggers a debounced re-probe on change.
type Watcher struct {
	fs       *fsnotify.Watcher
	reprober Reprober
	debounce time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	dirs   map[string]string   // watched dir -> repository
	repos  map[string][]string // repository -> watched dirs
	timers map[string]*time.Timer
}

// Option is a functional option for configuring Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a re-probe. Non-positive values
// keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New creates a watcher that reports changes to reprober.
func New(reprober Reprober, opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	w := &Watcher{
		fs:       fs,
		reprober: reprober,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		ctx:      context.Background(),
		dirs:     make(map[string]string),
		repos:    make(map[string][]string),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// watchDirs lists the directories whose changes can alter the status of the
// repository at path: the working tree root, the git directory, and the
// local and remote-tracking ref directories.
func watchDirs(path string) ([]string, error) {
	gitDir, err := git.GitDir(path)
	if err != nil {
		return nil, err
	}

	dirs := []string{path}
	if gitDir != path {
		dirs = append(dirs, gitDir)
	}
	dirs = append(dirs, filepath.Join(gitDir, "refs", "heads"))

	remotes := filepath.Join(gitDir, "refs", "remotes")
	entries, _ := os.ReadDir(remotes)
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(remotes, e.Name()))
		}
	}
	return dirs, nil
}

// Add starts watching the repository at path. Adding a watched repository
// is a no-op.
func (w *Watcher) Add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.repos[path]; ok {
		return nil
	}

	dirs, err := watchDirs(path)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve git directory for %s", path)
	}

	var added []string
	for _, dir := range dirs {
		if _, taken := w.dirs[dir]; taken {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			w.logger.Warn("watch add failed", "path", path, "dir", dir, "error", err)
			continue
		}
		w.dirs[dir] = path
		added = append(added, dir)
	}
	w.repos[path] = added
	w.logger.Debug("watching repository", "path", path, "dirs", len(added))
	return nil
}

// Remove stops watching the repository at path.
func (w *Watcher) Remove(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeLocked(path)
}

func (w *Watcher) removeLocked(path string) {
	if t, ok := w.timers[path]; ok {
		t.Stop()
		delete(w.timers, path)
	}
	for _, dir := range w.repos[path] {
		_ = w.fs.Remove(dir)
		delete(w.dirs, dir)
	}
	delete(w.repos, path)
}

// Sync makes the watched set equal to paths.
func (w *Watcher) Sync(paths []string) {
	want := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		want[p] = struct{}{}
	}

	w.mu.Lock()
	for path := range w.repos {
		if _, ok := want[path]; !ok {
			w.removeLocked(path)
		}
	}
	w.mu.Unlock()

	for _, p := range paths {
		if err := w.Add(p); err != nil {
			w.logger.Debug("skipping watch", "path", p, "error", err)
		}
	}
}

// Watched reports whether the repository at path is being watched.
func (w *Watcher) Watched(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.repos[path]
	return ok
}

// Len returns the number of watched repositories.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.repos)
}

// Run dispatches file events until ctx is cancelled, then closes the
// watcher.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.mu.Lock()
			repo, ok := w.dirs[filepath.Dir(ev.Name)]
			if ok {
				w.scheduleLocked(repo)
			}
			w.mu.Unlock()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// relevant filters out events that never change a repository's status.
func relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(ev.Name)
	return !strings.HasSuffix(base, ".lock") && base != git.MarkerName
}

func (w *Watcher) scheduleLocked(repo string) {
	if t, ok := w.timers[repo]; ok {
		t.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if cur, ok := w.timers[repo]; !ok || cur != t {
			w.mu.Unlock()
			return
		}
		delete(w.timers, repo)
		ctx := w.ctx
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		_, err := w.reprober.Reprobe(ctx, repo)
		switch {
		case errors.Is(err, discovery.ErrNotTracked):
			w.logger.Debug("repository vanished", "path", repo)
			w.Remove(repo)
		case err != nil:
			w.logger.Warn("re-probe failed", "path", repo, "error", err)
		}
	})
	w.timers[repo] = t
}

// Close stops every pending re-probe and releases the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()
	return w.fs.Close()
}
