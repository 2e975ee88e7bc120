package git

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"

	rdErrors "thoreinstein.com/repodash/pkg/errors"
)

// ExecClient answers repository queries by running the git binary.
// All queries are read-only and safe to call concurrently for different paths.
type ExecClient struct {
	binary           string
	runner           CommandRunner
	includeUntracked bool
	logger           *slog.Logger
}

// ExecClientOption is a functional option for configuring ExecClient.
type ExecClientOption func(*ExecClient)

// WithBinary sets the git executable to run.
func WithBinary(binary string) ExecClientOption {
	return func(c *ExecClient) {
		if strings.TrimSpace(binary) != "" {
			c.binary = binary
		}
	}
}

// WithRunner sets a custom CommandRunner (for testing).
func WithRunner(runner CommandRunner) ExecClientOption {
	return func(c *ExecClient) {
		c.runner = runner
	}
}

// WithUntracked controls whether untracked files count as changes.
func WithUntracked(include bool) ExecClientOption {
	return func(c *ExecClient) {
		c.includeUntracked = include
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(logger *slog.Logger) ExecClientOption {
	return func(c *ExecClient) {
		c.logger = logger
	}
}

// NewExecClient creates a git binary backed client.
func NewExecClient(opts ...ExecClientOption) *ExecClient {
	c := &ExecClient{
		binary:           "git",
		runner:           &RealCommandRunner{},
		includeUntracked: true,
		logger:           slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// IsRepositoryRoot reports whether path holds a repository marker. Bare
// repositories are not roots. It only inspects the filesystem so the walker
// can call it for every directory.
func (c *ExecClient) IsRepositoryRoot(path string) bool {
	return IsWorkTreeRoot(path)
}

// RemoteURL returns the URL of the origin remote, falling back to the first
// configured remote. It returns "" and no error when no remote exists.
func (c *ExecClient) RemoteURL(ctx context.Context, path string) (string, error) {
	url, found, err := c.configValue(ctx, path, "remote.origin.url")
	if err != nil {
		return "", rdErrors.NewQueryErrorWithCause("RemoteURL", path, "failed to read remote.origin.url", err)
	}
	if found {
		return url, nil
	}

	out, err := c.git(ctx, path, "remote")
	if err != nil {
		return "", rdErrors.NewQueryErrorWithCause("RemoteURL", path, "failed to list remotes", err)
	}
	for _, name := range strings.Split(string(out), "\n") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		url, _, err := c.configValue(ctx, path, "remote."+name+".url")
		if err != nil {
			return "", rdErrors.NewQueryErrorWithCause("RemoteURL", path, "failed to read remote."+name+".url", err)
		}
		return url, nil
	}

	return "", nil
}

// ChangedPaths returns the porcelain change list of the working tree.
func (c *ExecClient) ChangedPaths(ctx context.Context, path string) ([]ChangedPath, error) {
	args := []string{"status", "--porcelain=v1"}
	if !c.includeUntracked {
		args = append(args, "--untracked-files=no")
	}

	out, err := c.git(ctx, path, args...)
	if err != nil {
		return nil, rdErrors.NewQueryErrorWithCause("ChangedPaths", path, "git status failed", err)
	}

	return ParsePorcelain(string(out)), nil
}

// AheadCount returns how many local commits the upstream branch lacks. A
// branch without upstream reports 0, the same as one that is in sync.
func (c *ExecClient) AheadCount(ctx context.Context, path string) (int, error) {
	out, err := c.git(ctx, path, "status", "--porcelain=v1", "--branch", "--untracked-files=no")
	if err != nil {
		return 0, rdErrors.NewQueryErrorWithCause("AheadCount", path, "git status --branch failed", err)
	}

	return ParseAheadCount(string(out)), nil
}

// StatusText returns the human readable `git status` output for path.
func (c *ExecClient) StatusText(ctx context.Context, path string) (string, error) {
	out, err := c.git(ctx, path, "status")
	if err != nil {
		return "", rdErrors.NewQueryErrorWithCause("Status", path, "git status failed", err)
	}
	return string(out), nil
}

// Version returns the version of the configured git binary.
func (c *ExecClient) Version(ctx context.Context) (*semver.Version, error) {
	out, err := c.runner.Output(ctx, "", c.binary, "version")
	if err != nil {
		return nil, rdErrors.NewQueryErrorWithCause("Version", "", "failed to run git version", err)
	}
	v, err := ParseVersion(string(out))
	if err != nil {
		return nil, rdErrors.NewQueryErrorWithCause("Version", "", "failed to parse git version", err)
	}
	return v, nil
}

func (c *ExecClient) git(ctx context.Context, path string, args ...string) ([]byte, error) {
	c.logger.Debug("running git", "path", path, "args", args)
	return c.runner.Output(ctx, path, c.binary, args...)
}

// configValue reads a single git config key. found is false when the key is
// unset, which git signals with exit status 1.
func (c *ExecClient) configValue(ctx context.Context, path, key string) (string, bool, error) {
	out, err := c.git(ctx, path, "config", "--get", key)
	if err != nil {
		if ctx.Err() == nil && exitCode(err) == 1 {
			return "", false, nil
		}
		return "", false, err
	}
	value := strings.TrimSpace(string(out))
	return value, value != "", nil
}
