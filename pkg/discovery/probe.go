package discovery

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"

	rdErrors "thoreinstein.com/repodash/pkg/errors"
	"thoreinstein.com/repodash/pkg/git"
)

// DefaultProbeTimeout bounds each individual repository query.
const DefaultProbeTimeout = 10 * time.Second

// Prober computes the record of a single repository.
type Prober struct {
	client  Client
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// ProberOption is a functional option for configuring Prober.
type ProberOption func(*Prober)

// WithProbeTimeout sets the per-query timeout.
func WithProbeTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithProbeLogger sets a custom logger for the prober.
func WithProbeLogger(logger *slog.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = logger
	}
}

// NewProber creates a prober backed by client.
func NewProber(client Client, opts ...ProberOption) *Prober {
	p := &Prober{
		client:  client,
		timeout: DefaultProbeTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe queries the repository at path and returns its record. It never
// fails: a failed or timed out change or ahead query yields an unresolved
// record carrying the error text. A failed remote lookup only affects the
// display name.
func (p *Prober) Probe(ctx context.Context, path string) Record {
	rec := Record{
		Path:        path,
		DisplayName: filepath.Base(path),
	}

	remote, err := bounded(ctx, p.timeout, func(ctx context.Context) (string, error) {
		return p.client.RemoteURL(ctx, path)
	})
	if err != nil {
		p.logger.Debug("remote lookup failed", "path", path, "error", err)
	} else if name := git.RepoName(remote); name != "" {
		rec.DisplayName = name
	}

	changes, err := bounded(ctx, p.timeout, func(ctx context.Context) ([]git.ChangedPath, error) {
		return p.client.ChangedPaths(ctx, path)
	})
	if err != nil {
		return p.fail(rec, "ChangedPaths", err)
	}
	for _, c := range changes {
		if c.Code != "" || c.Path != "" {
			rec.Changes++
		}
	}

	ahead, err := bounded(ctx, p.timeout, func(ctx context.Context) (int, error) {
		return p.client.AheadCount(ctx, path)
	})
	if err != nil {
		return p.fail(rec, "AheadCount", err)
	}
	rec.Ahead = max(ahead, 0)

	rec.Resolved = true
	rec.LastProbedAt = p.now()
	return rec
}

func (p *Prober) fail(rec Record, op string, err error) Record {
	if !rdErrors.IsQueryError(err) {
		err = rdErrors.NewQueryErrorWithCause(op, rec.Path, "query failed", err)
	}
	p.logger.Debug("probe failed", "path", rec.Path, "error", err)

	rec.Changes = 0
	rec.Ahead = 0
	rec.Resolved = false
	rec.ProbeError = err.Error()
	rec.LastProbedAt = p.now()
	return rec
}

// bounded runs query with a deadline and returns once the deadline passes,
// even when the query ignores its context.
func bounded[T any](ctx context.Context, timeout time.Duration, query func(context.Context) (T, error)) (T, error) {
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := query(qctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-qctx.Done():
		var zero T
		return zero, errors.Wrap(qctx.Err(), "query abandoned")
	}
}
