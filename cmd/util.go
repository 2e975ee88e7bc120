package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"thoreinstein.com/repodash/pkg/config"
	"thoreinstein.com/repodash/pkg/discovery"
	"thoreinstein.com/repodash/pkg/git"
)

// newEngine builds the discovery engine for cfg with the shared logger.
func newEngine(cfg *config.Config, opts ...discovery.EngineOption) *discovery.Engine {
	return discovery.NewEngine(cfg, append([]discovery.EngineOption{discovery.WithEngineLogger(logger)}, opts...)...)
}

// absPath resolves a user supplied path argument.
func absPath(arg string) (string, error) {
	if strings.HasPrefix(arg, "~") {
		expanded, err := config.ExpandPath(arg)
		if err != nil {
			return "", err
		}
		arg = expanded
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", errors.Wrapf(err, "invalid path: %s", arg)
	}
	return abs, nil
}

// underRoots keeps the records that live under one of roots.
func underRoots(records []discovery.Record, roots []string) []discovery.Record {
	var out []discovery.Record
	for _, rec := range records {
		for _, root := range roots {
			rel, err := filepath.Rel(root, rec.Path)
			if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// warnOldGit prints a warning when the exec backend's git is too old for
// porcelain v1 output.
func warnOldGit(ctx context.Context, cfg *config.Config, w io.Writer) {
	if cfg.Git.Backend != "exec" {
		return
	}
	v, err := git.NewExecClient(git.WithBinary(cfg.Git.Binary), git.WithLogger(logger)).Version(ctx)
	if err != nil {
		logger.Debug("could not determine git version", "error", err)
		return
	}
	if !git.SupportsPorcelain(v) {
		fmt.Fprintf(w, "Warning: git %s is older than %s; status results may be wrong\n", v, git.MinimumVersion)
	}
}
