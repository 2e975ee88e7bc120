package cmd

import (
	"github.com/spf13/cobra"

	"thoreinstein.com/repodash/pkg/discovery"
)

var (
	listOutput  = outputTable
	listFilter  string
	listRefresh bool
)

// listCmd shows the cached repository snapshot.
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show the cached repository status",
	Long: `Show repositories from the cache. A full scan runs first when the cache is
missing, older than discovery.cache_ttl, or --refresh is given.

Examples:
  repodash list                  # Cached view
  repodash list --refresh        # Rescan before listing
  repodash list --filter api     # Only repositories matching "api"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList(cmd)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().VarP(&listOutput, "output", "o", "Output format (table, json, yaml, toml)")
	listCmd.Flags().StringVarP(&listFilter, "filter", "f", "", "Only show repositories whose name or path contains this text")
	listCmd.Flags().BoolVarP(&listRefresh, "refresh", "r", false, "Rescan even when the cache is fresh")
}

func runList(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine := newEngine(cfg)
	defer engine.Close()

	records, err := engine.Records(cmd.Context(), listRefresh)
	if err != nil {
		return err
	}

	return renderRecords(cmd.OutOrStdout(), discovery.FilterRecords(records, listFilter), listOutput)
}
