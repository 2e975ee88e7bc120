package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/lo"

	"thoreinstein.com/repodash/pkg/config"
	"thoreinstein.com/repodash/pkg/discovery"
	"thoreinstein.com/repodash/pkg/errors"
	"thoreinstein.com/repodash/pkg/metrics"
	"thoreinstein.com/repodash/pkg/server"
	"thoreinstein.com/repodash/pkg/watch"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the repodash backend: the HTTP API, the initial scan and
// periodic rescans, and the repository watcher. It returns after a signal,
// ctx cancellation or a server failure, once the running scan has drained
// and the cache is saved.
func Serve(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	pidFile := DefaultPIDFile()
	if err := pidFile.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := pidFile.Release(); err != nil {
			logger.Warn("failed to remove PID file", "path", pidFile.Path, "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var watcher *watch.Watcher
	m := metrics.New()
	engine := discovery.NewEngine(cfg,
		discovery.WithEngineLogger(logger),
		discovery.WithEngineObserver(m),
		discovery.WithEngineListener(discovery.ListenerFuncs{
			OnRepositoryFound: func(path string) {
				if watcher == nil {
					return
				}
				if err := watcher.Add(path); err != nil {
					logger.Debug("skipping watch", "path", path, "error", err)
				}
			},
		}),
	)
	defer engine.Close()
	m.RegisterStore(engine.Store())

	if lastScanned, err := engine.Warm(ctx); err != nil {
		logger.Warn("failed to load cache", "path", cfg.Discovery.CachePath, "error", err)
	} else if !lastScanned.IsZero() {
		logger.Info("loaded cached records", "count", engine.Store().Len(), "scanned_at", lastScanned)
	}

	trackedPaths := func() []string {
		return lo.Map(engine.Store().Snapshot(), func(rec discovery.Record, _ int) string {
			return rec.Path
		})
	}

	serverOpts := []server.Option{
		server.WithLogger(logger),
		server.WithBaseContext(ctx),
		server.WithGatherer(m.Registry()),
	}

	watchDone := make(chan struct{})
	if cfg.Watch.Enabled {
		w, err := watch.New(engine, watch.WithDebounce(cfg.Watch.Debounce), watch.WithLogger(logger))
		if err != nil {
			return err
		}
		w.Sync(trackedPaths())
		watcher = w
		serverOpts = append(serverOpts, server.WithForgetHook(w.Remove))
		go func() {
			defer close(watchDone)
			_ = w.Run(ctx)
		}()
	} else {
		close(watchDone)
	}

	srv := server.New(engine, serverOpts...)
	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", cfg.Server.Addr)
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(lis)
	}()

	lifecycle := NewLifecycle(engine, cfg.Server.RescanInterval, func(discovery.ScanResult) {
		if watcher != nil {
			watcher.Sync(trackedPaths())
		}
	}, logger)
	lifecycleDone := make(chan struct{})
	go func() {
		defer close(lifecycleDone)
		lifecycle.Run(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	fmt.Fprintf(out, "repodash serving on http://%s (PID %d)\n", lis.Addr(), os.Getpid())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down")
	case <-sigCh:
		fmt.Fprintln(out, "\nShutting down...")
	case err := <-serveErr:
		runErr = errors.Wrap(err, "http server failed")
	}

	// Cancelling ctx stops the walk; in-flight probes still finish.
	lifecycle.Stop()
	cancel()
	if run := engine.Coordinator().Current(); run != nil {
		run.Wait()
	}
	<-lifecycleDone
	<-watchDone

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", "error", err)
	}

	if err := engine.Save(shutdownCtx); err != nil {
		logger.Warn("failed to save cache", "path", cfg.Discovery.CachePath, "error", err)
	}
	return runErr
}
