package cmd

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"thoreinstein.com/repodash/pkg/git"
)

// statusCmd prints git's own status report for one repository.
var statusCmd = &cobra.Command{
	Use:   "status <path>",
	Short: "Show git status for one repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, arg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := absPath(arg)
	if err != nil {
		return err
	}

	client := git.NewExecClient(git.WithBinary(cfg.Git.Binary), git.WithLogger(logger))
	if !client.IsRepositoryRoot(path) {
		return errors.Newf("%s is not a git repository", path)
	}

	out, err := client.StatusText(cmd.Context(), path)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
