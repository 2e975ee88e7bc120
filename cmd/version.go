package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"thoreinstein.com/repodash/pkg/git"
)

// version is set at build time with -ldflags "-X thoreinstein.com/repodash/cmd.version=..."
var version = "dev"

// GetVersion returns the build version.
func GetVersion() string {
	return version
}

// versionCmd prints the repodash and git versions.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "repodash %s\n", GetVersion())

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		v, err := git.NewExecClient(git.WithBinary(cfg.Git.Binary), git.WithLogger(logger)).Version(cmd.Context())
		if err != nil {
			fmt.Fprintf(out, "git: unavailable (%v)\n", err)
			return nil
		}
		fmt.Fprintf(out, "git %s\n", v)
		if !git.SupportsPorcelain(v) {
			fmt.Fprintf(out, "Warning: git %s or newer is required for the exec backend\n", git.MinimumVersion)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
