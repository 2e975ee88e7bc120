package cmd

import (
	"github.com/spf13/cobra"

	"thoreinstein.com/repodash/pkg/discovery"
)

var probeOutput = outputTable

// probeCmd refreshes one repository.
var probeCmd = &cobra.Command{
	Use:   "probe <path>",
	Short: "Re-check the status of one repository",
	Long: `Probe a single repository and update its cached record. A repository that is
not tracked yet is added; a directory that is no longer a repository is dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().VarP(&probeOutput, "output", "o", "Output format (table, json, yaml, toml)")
}

func runProbe(cmd *cobra.Command, arg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := absPath(arg)
	if err != nil {
		return err
	}

	engine := newEngine(cfg)
	defer engine.Close()

	if _, err := engine.Warm(cmd.Context()); err != nil {
		logger.Warn("ignoring unreadable cache", "path", cfg.Discovery.CachePath, "error", err)
	}

	rec, err := engine.Reprobe(cmd.Context(), path)
	if err != nil {
		return err
	}
	return renderRecords(cmd.OutOrStdout(), []discovery.Record{rec}, probeOutput)
}
