// Package commands implements the netfs command line client.
package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/netfs/internal/logger"
	"github.com/marmos91/netfs/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile       string
	logLevel      string
	enableMetrics bool

	// cfg is loaded once per invocation by the root PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netfs",
	Short: "netfs - network filesystem client for retro network devices",
	Long: `netfs drives the filesystem adapter layer of a network device from the
command line. Locators name the resource, for example:

  tnfs://host/games/
  https://example.com/dav/readme.txt
  s3://bucket/docs/

Every command goes through the same adapter the device dispatcher uses, so
listings, special commands and error codes match what the host would see.

Use "netfs [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/netfs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().BoolVar(&enableMetrics, "metrics", false, "enable the Prometheus metrics collectors")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
	for _, c := range specialCmds() {
		rootCmd.AddCommand(c)
	}

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig reads the configuration, applies flag overrides and sets up
// the logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Logging.Level = strings.ToUpper(logLevel)
	}
	if enableMetrics {
		loaded.Metrics.Enabled = true
	}
	if err := config.Validate(loaded); err != nil {
		return err
	}

	logger.SetLevel(loaded.Logging.Level)
	logger.SetFormat(loaded.Logging.Format)
	if err := logger.SetOutputPath(loaded.Logging.Output); err != nil {
		return fmt.Errorf("failed to configure log output: %w", err)
	}

	cfg = loaded
	return nil
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}
