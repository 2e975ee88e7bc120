package discovery

import (
	"context"

	"thoreinstein.com/repodash/pkg/git"
)

// RootDetector decides whether a directory is a repository root. It must be
// cheap enough to call for every directory of a walk.
type RootDetector interface {
	IsRepositoryRoot(path string) bool
}

// Client answers read-only questions about a repository. Implementations
// must be safe for concurrent use across different paths and should honor
// context cancellation.
type Client interface {
	RootDetector

	// RemoteURL returns the primary remote URL, or "" with a nil error when
	// the repository has no remote.
	RemoteURL(ctx context.Context, path string) (string, error)

	// ChangedPaths lists uncommitted changes in the working tree and index.
	ChangedPaths(ctx context.Context, path string) ([]git.ChangedPath, error)

	// AheadCount returns the number of local commits missing from the
	// upstream branch. No upstream is reported as 0.
	AheadCount(ctx context.Context, path string) (int, error)
}

var (
	_ Client = (*git.ExecClient)(nil)
	_ Client = (*git.GoGitClient)(nil)
)
