package git

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"

	rdErrors "thoreinstein.com/repodash/pkg/errors"
)

// GoGitClient answers repository queries in-process with go-git, without
// requiring a git binary on PATH.
type GoGitClient struct {
	includeUntracked bool
	logger           *slog.Logger
}

// GoGitClientOption is a functional option for configuring GoGitClient.
type GoGitClientOption func(*GoGitClient)

// WithGoGitUntracked controls whether untracked files count as changes.
func WithGoGitUntracked(include bool) GoGitClientOption {
	return func(c *GoGitClient) {
		c.includeUntracked = include
	}
}

// WithGoGitLogger sets a custom logger for the client.
func WithGoGitLogger(logger *slog.Logger) GoGitClientOption {
	return func(c *GoGitClient) {
		c.logger = logger
	}
}

// NewGoGitClient creates a go-git backed client.
func NewGoGitClient(opts ...GoGitClientOption) *GoGitClient {
	c := &GoGitClient{
		includeUntracked: true,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsRepositoryRoot reports whether path holds a repository marker. Bare
// repositories are not roots.
func (c *GoGitClient) IsRepositoryRoot(path string) bool {
	return IsWorkTreeRoot(path)
}

// RemoteURL returns the first URL of origin, or of the first remote by name
// when origin is absent. It returns "" and no error when no remote exists.
func (c *GoGitClient) RemoteURL(ctx context.Context, path string) (string, error) {
	url, err := withContext(ctx, func() (string, error) {
		repo, err := c.open(path)
		if err != nil {
			return "", err
		}
		remotes, err := repo.Remotes()
		if err != nil {
			return "", errors.Wrap(err, "failed to list remotes")
		}
		if len(remotes) == 0 {
			return "", nil
		}

		slices.SortFunc(remotes, func(a, b *git.Remote) int {
			switch {
			case a.Config().Name == "origin":
				return -1
			case b.Config().Name == "origin":
				return 1
			}
			return strings.Compare(a.Config().Name, b.Config().Name)
		})
		if urls := remotes[0].Config().URLs; len(urls) > 0 {
			return urls[0], nil
		}
		return "", nil
	})
	if err != nil {
		return "", rdErrors.NewQueryErrorWithCause("RemoteURL", path, "failed to read remotes", err)
	}
	return url, nil
}

// ChangedPaths returns the working tree and index changes, sorted by path.
func (c *GoGitClient) ChangedPaths(ctx context.Context, path string) ([]ChangedPath, error) {
	changes, err := withContext(ctx, func() ([]ChangedPath, error) {
		repo, err := c.open(path)
		if err != nil {
			return nil, err
		}
		wt, err := repo.Worktree()
		if err != nil {
			return nil, errors.Wrap(err, "failed to open worktree")
		}
		status, err := wt.Status()
		if err != nil {
			return nil, errors.Wrap(err, "failed to compute status")
		}

		var changes []ChangedPath
		for file, fs := range status {
			if fs.Staging == git.Unmodified && fs.Worktree == git.Unmodified {
				continue
			}
			if !c.includeUntracked && fs.Worktree == git.Untracked {
				continue
			}
			code := strings.TrimSpace(string([]byte{byte(fs.Staging), byte(fs.Worktree)}))
			changes = append(changes, ChangedPath{Code: code, Path: file})
		}
		slices.SortFunc(changes, func(a, b ChangedPath) int {
			return strings.Compare(a.Path, b.Path)
		})
		return changes, nil
	})
	if err != nil {
		return nil, rdErrors.NewQueryErrorWithCause("ChangedPaths", path, "status failed", err)
	}
	return changes, nil
}

// AheadCount counts commits reachable from HEAD but not from the upstream of
// the current branch. Detached heads, unborn branches and branches without
// an upstream report 0.
func (c *GoGitClient) AheadCount(ctx context.Context, path string) (int, error) {
	ahead, err := withContext(ctx, func() (int, error) {
		repo, err := c.open(path)
		if err != nil {
			return 0, err
		}

		head, err := repo.Head()
		if err != nil {
			if errors.Is(err, plumbing.ErrReferenceNotFound) {
				return 0, nil
			}
			return 0, errors.Wrap(err, "failed to resolve HEAD")
		}
		if !head.Name().IsBranch() {
			return 0, nil
		}

		upstream, err := upstreamRef(repo, head.Name())
		if err != nil || upstream == nil {
			return 0, err
		}

		return countAhead(ctx, repo, head.Hash(), upstream.Hash())
	})
	if err != nil {
		return 0, rdErrors.NewQueryErrorWithCause("AheadCount", path, "ahead count failed", err)
	}
	return ahead, nil
}

func (c *GoGitClient) open(path string) (*git.Repository, error) {
	c.logger.Debug("opening repository", "path", path)
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open repository %s", path)
	}
	return repo, nil
}

// upstreamRef resolves the tracking reference configured for branch, or nil
// when the branch has none or the tracking ref was never fetched.
func upstreamRef(repo *git.Repository, branch plumbing.ReferenceName) (*plumbing.Reference, error) {
	cfg, err := repo.Config()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read repository config")
	}
	bc, ok := cfg.Branches[branch.Short()]
	if !ok || bc.Remote == "" || bc.Merge == "" {
		return nil, nil
	}

	name := bc.Merge
	if bc.Remote != "." {
		name = plumbing.NewRemoteReferenceName(bc.Remote, bc.Merge.Short())
	}
	ref, err := repo.Reference(name, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to resolve upstream %s", name)
	}
	return ref, nil
}

func countAhead(ctx context.Context, repo *git.Repository, local, upstream plumbing.Hash) (int, error) {
	if local == upstream {
		return 0, nil
	}

	reachable := make(map[plumbing.Hash]struct{})
	upIter, err := repo.Log(&git.LogOptions{From: upstream})
	if err != nil {
		return 0, errors.Wrap(err, "failed to walk upstream history")
	}
	err = upIter.ForEach(func(commit *object.Commit) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reachable[commit.Hash] = struct{}{}
		return nil
	})
	if err != nil {
		return 0, err
	}

	count := 0
	localIter, err := repo.Log(&git.LogOptions{From: local})
	if err != nil {
		return 0, errors.Wrap(err, "failed to walk local history")
	}
	err = localIter.ForEach(func(commit *object.Commit) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, ok := reachable[commit.Hash]; !ok {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

type result[T any] struct {
	value T
	err   error
}

// withContext runs fn on its own goroutine so callers observe ctx deadlines
// even though go-git's read paths do not accept a context.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	done := make(chan result[T], 1)
	go func() {
		v, err := fn()
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
