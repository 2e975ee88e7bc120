package discovery

import (
	"context"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
)

// DefaultExclusions are directory names never descended into.
var DefaultExclusions = []string{
	"node_modules",
	"vendor",
	".terraform",
	".git",
	".idea",
	".vscode",
	".cache",
}

// ProgressMode selects how the walker estimates its total work.
type ProgressMode string

const (
	// ProgressAdaptive estimates the total as visited plus pending
	// directories in a single pass.
	ProgressAdaptive ProgressMode = "adaptive"
	// ProgressPrecount counts every directory in a first pass so the total
	// is known before discovery starts.
	ProgressPrecount ProgressMode = "precount"
)

// Walker finds repository roots under a directory.
type Walker struct {
	detector       RootDetector
	exclusions     map[string]bool
	maxDepth       int
	followSymlinks bool
	mode           ProgressMode
	canRead        func(dir string) bool
	logger         *slog.Logger
}

// WalkerOption is a functional option for configuring Walker.
type WalkerOption func(*Walker)

// WithExclusions replaces the excluded directory names.
func WithExclusions(names []string) WalkerOption {
	return func(w *Walker) {
		w.exclusions = make(map[string]bool, len(names))
		for _, name := range names {
			w.exclusions[name] = true
		}
	}
}

// WithMaxDepth limits how many levels below the root are visited. Zero
// means unlimited.
func WithMaxDepth(depth int) WalkerOption {
	return func(w *Walker) {
		w.maxDepth = max(depth, 0)
	}
}

// WithFollowSymlinks makes the walker descend into symlinked directories.
func WithFollowSymlinks(follow bool) WalkerOption {
	return func(w *Walker) {
		w.followSymlinks = follow
	}
}

// WithProgressMode selects the progress estimate.
func WithProgressMode(mode ProgressMode) WalkerOption {
	return func(w *Walker) {
		if mode == ProgressPrecount || mode == ProgressAdaptive {
			w.mode = mode
		}
	}
}

// WithAccessCheck replaces the check deciding whether a directory may be
// listed. Directories it rejects are skipped like permission errors.
func WithAccessCheck(canRead func(dir string) bool) WalkerOption {
	return func(w *Walker) {
		if canRead != nil {
			w.canRead = canRead
		}
	}
}

// WithWalkerLogger sets a custom logger for the walker.
func WithWalkerLogger(logger *slog.Logger) WalkerOption {
	return func(w *Walker) {
		w.logger = logger
	}
}

// NewWalker creates a walker using detector to recognize repositories.
func NewWalker(detector RootDetector, opts ...WalkerOption) *Walker {
	w := &Walker{
		detector: detector,
		mode:     ProgressAdaptive,
		canRead:  readable,
		logger:   slog.Default(),
	}
	WithExclusions(DefaultExclusions)(w)

	for _, opt := range opts {
		opt(w)
	}

	return w
}

type frame struct {
	path  string
	depth int
}

// Walk returns a sequence that visits root depth-first in lexical order and
// yields one Step per directory. A repository root is reported once and not
// descended into. Unreadable directories are skipped and still count as
// completed work, so the walk never fails. Iteration stops early when ctx is
// cancelled or the consumer stops ranging.
func (w *Walker) Walk(ctx context.Context, root string) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		root = filepath.Clean(root)

		var progress Progress
		if w.mode == ProgressPrecount {
			progress.Total = w.count(ctx, root)
		}

		visited := make(map[string]bool)
		stack := []frame{{path: root}}

		for len(stack) > 0 {
			if ctx.Err() != nil {
				return
			}

			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			isRepo, children := w.visit(f, visited)
			progress.Completed++
			stack = append(stack, children...)
			progress.Total = max(progress.Total, progress.Completed+len(stack))

			step := Step{Progress: progress}
			if isRepo {
				step.Repository = f.path
			}
			if !yield(step) {
				return
			}
		}
	}
}

// visit classifies one directory and returns its children in reverse
// lexical order, ready to be pushed on the stack.
func (w *Walker) visit(f frame, visited map[string]bool) (bool, []frame) {
	realPath, err := filepath.EvalSymlinks(f.path)
	if err != nil {
		w.logger.Debug("skipping unresolvable directory", "path", f.path, "error", err)
		return false, nil
	}
	if visited[realPath] {
		return false, nil
	}
	visited[realPath] = true

	if !w.canRead(f.path) {
		w.logger.Debug("skipping unreadable directory", "path", f.path)
		return false, nil
	}

	if w.detector.IsRepositoryRoot(f.path) {
		return true, nil
	}

	if w.maxDepth > 0 && f.depth >= w.maxDepth {
		return false, nil
	}

	entries, err := os.ReadDir(f.path)
	if err != nil {
		w.logger.Debug("skipping unreadable directory", "path", f.path, "error", err)
		return false, nil
	}

	var children []frame
	for _, entry := range entries {
		if w.exclusions[entry.Name()] {
			continue
		}
		child := filepath.Join(f.path, entry.Name())
		if !w.isDir(child, entry) {
			continue
		}
		children = append(children, frame{path: child, depth: f.depth + 1})
	}
	slices.Reverse(children)

	return false, children
}

func (w *Walker) isDir(path string, entry fs.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 || !w.followSymlinks {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// count runs the traversal without reporting to size the precount total.
func (w *Walker) count(ctx context.Context, root string) int {
	visited := make(map[string]bool)
	stack := []frame{{path: root}}
	total := 0

	for len(stack) > 0 && ctx.Err() == nil {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		_, children := w.visit(f, visited)
		total++
		stack = append(stack, children...)
	}

	return total
}
