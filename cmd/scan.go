package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"thoreinstein.com/repodash/pkg/discovery"
)

var (
	scanOutput     = outputTable
	scanFilter     string
	scanNoProgress bool
)

// scanCmd discovers repositories and reports their status.
var scanCmd = &cobra.Command{
	Use:   "scan [root...]",
	Short: "Discover repositories and report their status",
	Long: `Walk the given roots (or the configured discovery.roots) for git repositories,
probe each one, and print the result. The cache is updated afterwards.

Press Ctrl-C to stop early: the repositories found so far are still reported.

Examples:
  repodash scan                  # Scan the configured roots
  repodash scan ~/src ~/work     # Scan specific directories
  repodash scan --output json    # Machine readable output`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runScan(ctx, cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().VarP(&scanOutput, "output", "o", "Output format (table, json, yaml, toml)")
	scanCmd.Flags().StringVarP(&scanFilter, "filter", "f", "", "Only show repositories whose name or path contains this text")
	scanCmd.Flags().BoolVar(&scanNoProgress, "no-progress", false, "Do not draw the progress line")
}

func runScan(ctx context.Context, cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	roots := cfg.Discovery.Roots
	if len(args) > 0 {
		roots = make([]string, 0, len(args))
		for _, arg := range args {
			root, err := absPath(arg)
			if err != nil {
				return err
			}
			roots = append(roots, root)
		}
	}

	warnOldGit(ctx, cfg, cmd.ErrOrStderr())

	progress := newProgressPrinter(cmd.ErrOrStderr())
	if scanNoProgress {
		progress.enabled = false
	}

	engine := newEngine(cfg, discovery.WithEngineListener(progress.listener()))
	defer engine.Close()

	if _, err := engine.Warm(ctx); err != nil {
		logger.Warn("ignoring unreadable cache", "path", cfg.Discovery.CachePath, "error", err)
	}

	summaries, scanErr := engine.Scan(ctx, roots...)
	progress.done()
	if scanErr != nil && !errors.Is(scanErr, context.Canceled) {
		return scanErr
	}
	for _, s := range summaries {
		logger.Debug("scan finished", "run", s.RunID, "root", s.Root, "found", s.Found, "visited", s.Visited, "duration", s.Duration)
	}

	if saveErr := engine.Save(context.WithoutCancel(ctx)); saveErr != nil {
		logger.Warn("failed to save cache", "path", cfg.Discovery.CachePath, "error", saveErr)
	}

	records := discovery.FilterRecords(underRoots(engine.Store().Snapshot(), roots), scanFilter)
	if err := renderRecords(cmd.OutOrStdout(), records, scanOutput); err != nil {
		return err
	}
	if scanErr != nil {
		cmd.PrintErrln("Scan interrupted; results are incomplete.")
	}
	return nil
}
