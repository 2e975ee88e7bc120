package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"thoreinstein.com/repodash/pkg/daemon"
	"thoreinstein.com/repodash/pkg/server"
)

// serveCmd runs the background backend.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the repodash backend",
	Long: `Serve the repository dashboard API on server.addr, rescan every
server.rescan_interval, and re-probe repositories when their git metadata
changes (watch.enabled).

Endpoints:
  GET    /api/v1/repositories?q=       Repository snapshot
  GET    /api/v1/repositories/summary  Counts per status
  POST   /api/v1/repositories/probe    Re-probe {"path": ...}
  DELETE /api/v1/repositories?path=    Forget a repository
  POST   /api/v1/scans                 Start a scan
  GET    /api/v1/scans/current         Scan progress
  GET    /metrics                      Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		warnOldGit(cmd.Context(), cfg, cmd.ErrOrStderr())
		return daemon.Serve(cmd.Context(), cfg, cmd.OutOrStdout(), logger)
	},
}

// serveStopCmd stops a running backend.
var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running repodash backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, running := daemon.DefaultPIDFile().Running()
		if !running {
			fmt.Fprintln(cmd.OutOrStdout(), "Backend is not running.")
			return nil
		}

		process, err := os.FindProcess(pid)
		if err != nil {
			return errors.Wrap(err, "failed to find backend process")
		}
		return process.Signal(syscall.SIGTERM)
	},
}

// serveStatusCmd reports whether the backend runs and what it holds.
var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of the repodash backend",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		pid, running := daemon.DefaultPIDFile().Running()
		if !running {
			fmt.Fprintln(out, "Backend is not running.")
			return nil
		}
		fmt.Fprintf(out, "Backend is running (PID %d).\n", pid)

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		summary, err := fetchSummary(cfg.Server.Addr)
		if err != nil {
			logger.Debug("summary unavailable", "addr", cfg.Server.Addr, "error", err)
			return nil
		}
		fmt.Fprintf(out, "%d repositories tracked: %v\n", summary.Total, summary.Counts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
}

func fetchSummary(addr string) (*server.SummaryResponse, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/v1/repositories/summary")
	if err != nil {
		return nil, errors.Wrap(err, "failed to reach backend")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("backend returned %s", resp.Status)
	}

	var summary server.SummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, errors.Wrap(err, "failed to decode summary")
	}
	return &summary, nil
}
