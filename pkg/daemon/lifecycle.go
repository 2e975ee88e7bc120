package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"thoreinstein.com/repodash/pkg/discovery"
)

// Scanner starts background scans over the configured roots.
type Scanner interface {
	StartScan(ctx context.Context, roots ...string) (<-chan discovery.ScanResult, error)
}

// Lifecycle runs the initial scan and the periodic rescans of the daemon.
type Lifecycle struct {
	scanner  Scanner
	interval time.Duration
	onScan   func(discovery.ScanResult)
	logger   *slog.Logger
	shutdown chan struct{}
	stopOnce sync.Once
}

// NewLifecycle creates a lifecycle that rescans every interval. A zero
// interval runs the initial scan only. onScan, when set, receives the
// result of every scan.
func NewLifecycle(s Scanner, interval time.Duration, onScan func(discovery.ScanResult), logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		scanner:  s,
		interval: interval,
		onScan:   onScan,
		logger:   logger,
		shutdown: make(chan struct{}),
	}
}

// Run scans immediately and then on every tick until ctx is cancelled or
// Stop is called. A scan in progress is waited for before Run returns.
func (l *Lifecycle) Run(ctx context.Context) {
	l.scan(ctx)

	if l.interval <= 0 {
		select {
		case <-ctx.Done():
		case <-l.shutdown:
		}
		return
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.shutdown:
			return
		case <-ticker.C:
			l.scan(ctx)
		}
	}
}

func (l *Lifecycle) scan(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	results, err := l.scanner.StartScan(ctx)
	if err != nil {
		if errors.Is(err, discovery.ErrScanInProgress) {
			l.logger.Debug("skipping rescan, scan already running")
			return
		}
		l.logger.Warn("failed to start rescan", "error", err)
		return
	}

	res := <-results
	found := 0
	for _, s := range res.Summaries {
		found += s.Found
	}
	l.logger.Info("rescan finished", "found", found, "duration", time.Since(start), "error", res.Err)

	if l.onScan != nil {
		l.onScan(res)
	}
}

// Stop signals the lifecycle to shut down. Safe to call multiple times.
func (l *Lifecycle) Stop() {
	l.stopOnce.Do(func() {
		close(l.shutdown)
	})
}
