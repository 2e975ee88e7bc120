package discovery

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"thoreinstein.com/repodash/pkg/config"
	rdErrors "thoreinstein.com/repodash/pkg/errors"
	"thoreinstein.com/repodash/pkg/git"
)

// Engine orchestrates discovery over the configured roots and the cache
type Engine struct {
	Config      *config.Config
	Cache       *Cache
	client      Client
	coordinator *Coordinator
	logger      *slog.Logger

	scanning atomic.Bool

	mu sync.Mutex
	// completedAt is the start of the last complete scan of every
	// configured root that Save has not stamped yet.
	completedAt time.Time
}

// ScanResult is delivered when a background scan finishes.
type ScanResult struct {
	Summaries []Summary
	Err       error
}

// EngineOption is a functional option for configuring Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	logger    *slog.Logger
	listeners []Listener
	observer  Observer
	client    Client
}

// WithEngineLogger sets the logger shared by every engine component.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithEngineListener adds a listener for coordinator events.
func WithEngineListener(l Listener) EngineOption {
	return func(o *engineOptions) {
		o.listeners = append(o.listeners, l)
	}
}

// WithEngineObserver sets the instrumentation hook.
func WithEngineObserver(obs Observer) EngineOption {
	return func(o *engineOptions) {
		o.observer = obs
	}
}

// WithClient overrides the client built from configuration.
func WithClient(client Client) EngineOption {
	return func(o *engineOptions) {
		o.client = client
	}
}

// NewClient builds the git client selected by cfg.Git.Backend.
func NewClient(cfg *config.Config, logger *slog.Logger) Client {
	if cfg.Git.Backend == "gogit" {
		return git.NewGoGitClient(
			git.WithGoGitUntracked(cfg.Probe.IncludeUntracked),
			git.WithGoGitLogger(logger),
		)
	}
	return git.NewExecClient(
		git.WithBinary(cfg.Git.Binary),
		git.WithUntracked(cfg.Probe.IncludeUntracked),
		git.WithLogger(logger),
	)
}

// NewEngine creates a discovery engine from configuration
func NewEngine(cfg *config.Config, opts ...EngineOption) *Engine {
	o := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = NewClient(cfg, o.logger)
	}

	walker := NewWalker(o.client,
		WithExclusions(cfg.Discovery.Exclusions),
		WithMaxDepth(cfg.Discovery.MaxDepth),
		WithFollowSymlinks(cfg.Discovery.FollowSymlinks),
		WithProgressMode(ProgressMode(cfg.Discovery.ProgressMode)),
		WithWalkerLogger(o.logger),
	)
	prober := NewProber(o.client,
		WithProbeTimeout(cfg.Probe.Timeout),
		WithProbeLogger(o.logger),
	)

	coordOpts := []CoordinatorOption{
		WithConcurrency(cfg.Probe.Concurrency),
		WithObserver(o.observer),
		WithLogger(o.logger),
	}
	for _, l := range o.listeners {
		coordOpts = append(coordOpts, WithListener(l))
	}

	return &Engine{
		Config:      cfg,
		Cache:       NewCache(cfg.Discovery.CachePath),
		client:      o.client,
		coordinator: NewCoordinator(walker, prober, NewStore(), coordOpts...),
		logger:      o.logger,
	}
}

// Coordinator returns the engine's scan coordinator.
func (e *Engine) Coordinator() *Coordinator {
	return e.coordinator
}

// Store returns the engine's record store.
func (e *Engine) Store() *Store {
	return e.coordinator.Store()
}

// Client returns the repository client in use.
func (e *Engine) Client() Client {
	return e.client
}

// Warm loads cached records into the Store so they are visible before the
// first scan resolves. It returns the time of the cached scan.
func (e *Engine) Warm(ctx context.Context) (time.Time, error) {
	records, lastScanned, err := e.Cache.Load(ctx)
	if err != nil {
		return time.Time{}, err
	}
	store := e.Store()
	for _, rec := range records {
		if _, ok := store.Get(rec.Path); !ok {
			store.Upsert(rec)
		}
	}
	return lastScanned, nil
}

// Records returns the cached records when they are younger than the cache
// TTL, otherwise it scans every root, saves the cache and returns the fresh
// snapshot.
func (e *Engine) Records(ctx context.Context, forceRefresh bool) ([]Record, error) {
	if !forceRefresh {
		records, lastScanned, err := e.Cache.Load(ctx)
		if err != nil {
			e.logger.Warn("ignoring unreadable cache", "path", e.Cache.Path, "error", err)
		} else if len(records) > 0 && time.Since(lastScanned) < e.Config.Discovery.CacheTTL {
			return records, nil
		}
	}

	if _, err := e.ScanAll(ctx); err != nil {
		return nil, err
	}
	if err := e.Save(ctx); err != nil {
		e.logger.Warn("failed to save cache", "path", e.Cache.Path, "error", err)
	}

	return e.Store().Snapshot(), nil
}

// ScanAll runs discovery over every configured root in turn and waits for
// status resolution. It stops early when ctx is cancelled.
func (e *Engine) ScanAll(ctx context.Context) ([]Summary, error) {
	return e.Scan(ctx, e.Config.Discovery.Roots...)
}

// Scan runs discovery over roots in turn and waits for status resolution.
// Records that are no longer repositories are pruned after a complete scan.
// A complete scan covering every configured root is stamped in the cache by
// the next Save.
func (e *Engine) Scan(ctx context.Context, roots ...string) ([]Summary, error) {
	startedAt := time.Now()
	summaries := make([]Summary, 0, len(roots))
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}

		run, err := e.coordinator.Start(ctx, root)
		if err != nil {
			if errors.Is(err, ErrScanInProgress) {
				return summaries, err
			}
			return summaries, rdErrors.NewScanErrorWithCause(root, "failed to start scan", err)
		}
		summaries = append(summaries, run.Wait())
	}

	if ctx.Err() != nil {
		return summaries, ctx.Err()
	}

	e.Prune()
	complete := !lo.SomeBy(summaries, func(s Summary) bool { return s.Cancelled })
	if complete && e.coversConfiguredRoots(roots) {
		e.mu.Lock()
		e.completedAt = startedAt
		e.mu.Unlock()
	}
	return summaries, nil
}

func (e *Engine) coversConfiguredRoots(roots []string) bool {
	return lo.Every(lo.Map(roots, cleanRoot), lo.Map(e.Config.Discovery.Roots, cleanRoot))
}

func cleanRoot(root string, _ int) string {
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return filepath.Clean(root)
}

// StartScan runs Scan over roots in the background, or over the configured
// roots when none are given, and saves the cache when it finishes. Only one
// background scan may be active; ErrScanInProgress is returned otherwise.
// The returned channel receives the result and is then closed.
func (e *Engine) StartScan(ctx context.Context, roots ...string) (<-chan ScanResult, error) {
	if len(roots) == 0 {
		roots = e.Config.Discovery.Roots
	}
	if !e.scanning.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}

	result := make(chan ScanResult, 1)
	go func() {
		summaries, err := e.Scan(ctx, roots...)
		if saveErr := e.Save(context.WithoutCancel(ctx)); saveErr != nil {
			e.logger.Warn("failed to save cache", "path", e.Cache.Path, "error", saveErr)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("background scan failed", "error", err)
		}
		e.scanning.Store(false)
		result <- ScanResult{Summaries: summaries, Err: err}
		close(result)
	}()
	return result, nil
}

// Scanning reports whether a background scan started by StartScan is active.
func (e *Engine) Scanning() bool {
	return e.scanning.Load()
}

// Prune drops records whose directory is no longer a repository root.
func (e *Engine) Prune() int {
	removed := 0
	for _, rec := range e.Store().Snapshot() {
		if !e.client.IsRepositoryRoot(rec.Path) {
			if e.coordinator.Forget(rec.Path) {
				e.logger.Debug("pruned missing repository", "path", rec.Path)
				removed++
			}
		}
	}
	return removed
}

// Reprobe refreshes one repository and persists the result.
func (e *Engine) Reprobe(ctx context.Context, path string) (Record, error) {
	rec, err := e.coordinator.Reprobe(ctx, path)
	if err != nil {
		return Record{}, err
	}
	if err := e.Save(ctx); err != nil {
		e.logger.Warn("failed to save cache", "path", e.Cache.Path, "error", err)
	}
	return rec, nil
}

// Forget drops a repository and persists the change.
func (e *Engine) Forget(ctx context.Context, path string) (bool, error) {
	removed := e.coordinator.Forget(path)
	if !removed {
		return false, nil
	}
	return true, e.Save(ctx)
}

// Save persists the current Store snapshot, and stamps the cache when a
// complete scan of the configured roots finished since the last Save.
func (e *Engine) Save(ctx context.Context) error {
	if err := e.Cache.Save(ctx, e.Store().Snapshot()); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.completedAt.IsZero() {
		return nil
	}
	if err := e.Cache.MarkScanned(ctx, e.completedAt); err != nil {
		return err
	}
	e.completedAt = time.Time{}
	return nil
}

// Close releases the cache.
func (e *Engine) Close() error {
	return e.Cache.Close()
}
