package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"thoreinstein.com/repodash/pkg/bootstrap"
	"thoreinstein.com/repodash/pkg/config"
	rdErrors "thoreinstein.com/repodash/pkg/errors"
)

var cfgFile string
var verbose bool
var appConfig *config.Config
var logger = slog.Default()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "repodash",
	Short: "repodash - status of every git repository under your roots",
	Long: `repodash finds every git repository under the configured root directories
and shows whether each one is clean, has uncommitted changes, or has commits
that were never pushed.

Run "repodash scan" for a one-off report, "repodash list" for the cached view,
or "repodash serve" to keep the dashboard fresh in the background.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Pre-parse global flags so the logger is configured before any command runs.
	cfgFile, verbose = bootstrap.PreParseGlobalFlags(os.Args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", rdErrors.FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "C", "", "config file (default is $HOME/.config/repodash/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initConfig reads in config file and ENV variables if set, and rebuilds
// the logger from the result.
func initConfig() error {
	var err error
	appConfig, verbose, err = bootstrap.InitConfig(cfgFile, verbose)
	if err != nil {
		return err
	}
	logger = bootstrap.NewLogger(os.Stderr, appConfig.Log.Format, verbose)
	return nil
}

// loadConfig returns the loaded configuration, loading it on first use.
func loadConfig() (*config.Config, error) {
	if appConfig == nil {
		if err := initConfig(); err != nil {
			return nil, err
		}
	}
	return appConfig, nil
}

// resetConfig clears the cached configuration.
// This is primarily used in tests to ensure each test starts with a fresh config.
func resetConfig() {
	appConfig = nil
	cfgFile = ""
	verbose = false
	logger = slog.Default()
	bootstrap.Reset()
	viper.Reset()
}
