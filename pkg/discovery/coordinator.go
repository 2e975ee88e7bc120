package discovery

import (
	"context"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrScanInProgress is returned by Start while another run is active.
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrNotTracked is returned for paths that are not repository roots.
	ErrNotTracked = errors.New("not a tracked repository")
)

// Listener receives coordinator events. Calls are serialized, so
// implementations do not need their own locking.
type Listener interface {
	RepositoryFound(path string)
	StatusUpdated(rec Record)
	Progress(percent int)
	ScanComplete(summary Summary)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnRepositoryFound func(path string)
	OnStatusUpdated   func(rec Record)
	OnProgress        func(percent int)
	OnScanComplete    func(summary Summary)
}

func (l ListenerFuncs) RepositoryFound(path string) {
	if l.OnRepositoryFound != nil {
		l.OnRepositoryFound(path)
	}
}

func (l ListenerFuncs) StatusUpdated(rec Record) {
	if l.OnStatusUpdated != nil {
		l.OnStatusUpdated(rec)
	}
}

func (l ListenerFuncs) Progress(percent int) {
	if l.OnProgress != nil {
		l.OnProgress(percent)
	}
}

func (l ListenerFuncs) ScanComplete(summary Summary) {
	if l.OnScanComplete != nil {
		l.OnScanComplete(summary)
	}
}

// Observer receives measurements for instrumentation.
type Observer interface {
	DirectoryVisited()
	RepositoryFound()
	ProbeFinished(rec Record, elapsed time.Duration)
	ScanFinished(summary Summary)
}

type nopObserver struct{}

func (nopObserver) DirectoryVisited()                   {}
func (nopObserver) RepositoryFound()                    {}
func (nopObserver) ProbeFinished(Record, time.Duration) {}
func (nopObserver) ScanFinished(Summary)                {}

// DefaultConcurrency is the probe limit when none is configured.
func DefaultConcurrency() int {
	return runtime.NumCPU() * 2
}

// Coordinator runs discovery and dispatches probes into the Store.
type Coordinator struct {
	walker      *Walker
	prober      *Prober
	store       *Store
	concurrency int
	listeners   []Listener
	observer    Observer
	logger      *slog.Logger

	emitMu sync.Mutex

	mu      sync.Mutex
	current *Run
	last    *Run
}

// CoordinatorOption is a functional option for configuring Coordinator.
type CoordinatorOption func(*Coordinator)

// WithConcurrency bounds the number of probes running at once.
func WithConcurrency(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithListener adds a listener for coordinator events.
func WithListener(l Listener) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// WithObserver sets the instrumentation hook.
func WithObserver(o Observer) CoordinatorOption {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets a custom logger for the coordinator.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator wires a walker, prober and store together.
func NewCoordinator(walker *Walker, prober *Prober, store *Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		walker:      walker,
		prober:      prober,
		store:       store,
		concurrency: DefaultConcurrency(),
		observer:    nopObserver{},
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Store returns the store the coordinator writes to.
func (c *Coordinator) Store() *Store {
	return c.store
}

// Run is the handle of one discovery run.
type Run struct {
	ID        string
	Root      string
	StartedAt time.Time

	cancel     context.CancelFunc
	discovered chan struct{}
	done       chan struct{}

	mu       sync.Mutex
	progress Progress
	percent  int
	summary  Summary
}

// Cancel stops the walk and any probes that have not started yet. Probes
// already running finish and are stored.
func (r *Run) Cancel() {
	r.cancel()
}

// Discovered is closed once the walk has finished and ScanComplete fired.
func (r *Run) Discovered() <-chan struct{} {
	return r.discovered
}

// Done is closed once every dispatched probe has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until Done and returns the run summary.
func (r *Run) Wait() Summary {
	<-r.done
	return r.Summary()
}

// Progress returns the latest walk progress.
func (r *Run) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Summary returns the summary, complete once Discovered is closed.
func (r *Run) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Percent returns the highest completion percentage reported so far. The
// adaptive estimate can shrink between steps; Percent never does.
func (r *Run) Percent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return max(r.percent, 0)
}

// observe records p and returns the new percentage when it is higher than
// any reported before.
func (r *Run) observe(p Progress) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = p
	return r.raise(p.Percent())
}

// complete raises the percentage to 100 after an uncancelled walk.
func (r *Run) complete() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.raise(100)
}

func (r *Run) raise(pct int) (int, bool) {
	if pct <= r.percent {
		return r.percent, false
	}
	r.percent = pct
	return pct, true
}

func (r *Run) setSummary(s Summary) {
	r.mu.Lock()
	r.summary = s
	r.mu.Unlock()
}

// Start begins discovery under root. Only one run may be active at a time;
// a run stays active until all of its probes have finished.
func (c *Coordinator) Start(ctx context.Context, root string) (*Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return nil, ErrScanInProgress
	}

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:         uuid.NewString(),
		Root:       filepath.Clean(root),
		StartedAt:  time.Now(),
		cancel:     cancel,
		percent:    -1,
		discovered: make(chan struct{}),
		done:       make(chan struct{}),
	}
	c.current = run
	c.last = run

	go c.run(runCtx, run)

	return run, nil
}

// Running reports whether a run is active.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Current returns the active run, or nil.
func (c *Coordinator) Current() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Last returns the active run, or the last finished one. It is nil before
// the first Start.
func (c *Coordinator) Last() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Progress returns the progress of the active run, or of the last finished
// run when none is active.
func (c *Coordinator) Progress() Progress {
	run := c.Last()
	if run == nil {
		return Progress{}
	}
	return run.Progress()
}

func (c *Coordinator) run(ctx context.Context, run *Run) {
	defer run.cancel()

	logger := c.logger.With("run", run.ID, "root", run.Root)
	logger.Debug("scan started")

	var (
		tasks   errgroup.Group
		sem     = semaphore.NewWeighted(int64(c.concurrency))
		found   int
		visited Progress
	)

	for step := range c.walker.Walk(ctx, run.Root) {
		c.observer.DirectoryVisited()
		visited = step.Progress
		pct, raised := run.observe(step.Progress)

		if step.Repository != "" {
			found++
			c.observer.RepositoryFound()
			c.store.Register(step.Repository)
			c.emit(func(l Listener) { l.RepositoryFound(step.Repository) })
			c.dispatch(ctx, &tasks, sem, step.Repository, logger)
		}

		if raised {
			c.emit(func(l Listener) { l.Progress(pct) })
		}
	}

	cancelled := ctx.Err() != nil
	if !cancelled {
		if pct, raised := run.complete(); raised {
			c.emit(func(l Listener) { l.Progress(pct) })
		}
	}

	summary := Summary{
		RunID:     run.ID,
		Root:      run.Root,
		Found:     found,
		Visited:   visited.Completed,
		Cancelled: cancelled,
		StartedAt: run.StartedAt,
		Duration:  time.Since(run.StartedAt),
	}
	run.setSummary(summary)
	c.emit(func(l Listener) { l.ScanComplete(summary) })
	close(run.discovered)
	logger.Info("discovery finished", "found", found, "visited", visited.Completed, "cancelled", cancelled, "duration", summary.Duration)

	_ = tasks.Wait()
	c.observer.ScanFinished(summary)
	logger.Debug("status resolution finished")

	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	close(run.done)
}

// dispatch queues a probe without blocking the walk. Probes that have not
// acquired a slot when ctx is cancelled never start; started probes run to
// completion.
func (c *Coordinator) dispatch(ctx context.Context, tasks *errgroup.Group, sem *semaphore.Weighted, path string, logger *slog.Logger) {
	tasks.Go(func() error {
		if err := sem.Acquire(ctx, 1); err != nil {
			logger.Debug("probe not started", "path", path)
			return nil
		}
		defer sem.Release(1)

		if ctx.Err() != nil {
			return nil
		}
		c.probe(context.WithoutCancel(ctx), path)
		return nil
	})
}

func (c *Coordinator) probe(ctx context.Context, path string) Record {
	ticket := c.store.Claim(path)
	start := time.Now()
	rec := c.prober.Probe(ctx, path)
	c.observer.ProbeFinished(rec, time.Since(start))

	if c.store.Apply(ticket, rec) {
		c.emit(func(l Listener) { l.StatusUpdated(rec) })
	}
	return rec
}

// Reprobe probes one repository outside of a run. A path that is no longer
// a repository root is dropped from the Store and ErrNotTracked is returned.
// An untracked path that is a repository root is registered first.
func (c *Coordinator) Reprobe(ctx context.Context, path string) (Record, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)

	if !c.prober.client.IsRepositoryRoot(path) {
		c.store.Remove(path)
		return Record{}, errors.Wrapf(ErrNotTracked, "%s", path)
	}

	if c.store.Register(path) {
		c.observer.RepositoryFound()
		c.emit(func(l Listener) { l.RepositoryFound(path) })
	}

	return c.probe(ctx, path), nil
}

// Forget drops a repository from the Store, typically after the user
// deleted it.
func (c *Coordinator) Forget(path string) bool {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return c.store.Remove(filepath.Clean(path))
}

func (c *Coordinator) emit(fn func(Listener)) {
	if len(c.listeners) == 0 {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	for _, l := range c.listeners {
		fn(l)
	}
}
