// Package main implements the fieldguard CLI: analyze API traffic
// samples for sensitive fields, merge developer overrides, and serve
// the review UI.
package main

import (
	"fmt"
	"os"

	"github.com/fieldguard/fieldguard/internal/config"
	"github.com/fieldguard/fieldguard/internal/logger"
	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

var (
	configPath string
	verbose    bool

	cfg *config.Config
	log *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fieldguard",
	Short: "fieldguard - API field sensitivity classifier",
	Long: `fieldguard inspects sampled API traffic, decides which fields carry
sensitive data (SPI, CPNI, PCI, ...), and generates the masking
blacklists consumed by the logging layer.

Decisions are driven by an editable pattern store; humans correct
mistakes through developer override files that merge back into it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if verbose {
			cfg.Logging.Level = "debug"
		}

		loggerConfig := logger.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		}
		if cfg.Logging.File.Enabled {
			loggerConfig.File = &logger.FileConfig{
				Enabled:  cfg.Logging.File.Enabled,
				Path:     cfg.Logging.File.Path,
				MaxSize:  cfg.Logging.File.MaxSize,
				MaxAge:   cfg.Logging.File.MaxAge,
				Compress: cfg.Logging.File.Compress,
			}
		}

		log, err = logger.New(loggerConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Version needs neither config nor logger.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fieldguard %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(analyzeCmd, mergeCmd, serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
