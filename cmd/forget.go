package cmd

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"thoreinstein.com/repodash/pkg/discovery"
)

// forgetCmd drops a repository from the cache.
var forgetCmd = &cobra.Command{
	Use:   "forget <path>",
	Short: "Remove a repository from the cache",
	Long: `Remove a repository from the cache, typically after deleting it from disk.
A repository that still exists is found again by the next scan.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runForget(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(forgetCmd)
}

func runForget(cmd *cobra.Command, arg string) error {
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
		return err
	}

	removed, err := engine.Forget(cmd.Context(), path)
	if err != nil {
		return err
	}
	if !removed {
		return errors.Wrapf(discovery.ErrNotTracked, "%s", path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", path)
	return nil
}
