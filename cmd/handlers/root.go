package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"adpulse/internal/config"
	"adpulse/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "adpulse",
		Short: "AI-generated weekly analysis for advertising campaign data",
		Long: `adpulse - Campaign Analysis Backend

Pulls advertising-campaign rows from a spreadsheet source, aggregates
per-vehicle metrics, and produces a cached AI-generated weekly narrative
through an ordered multi-backend fallback.

Core workflows:
  • Serve: host the analysis API consumed by the dashboard
  • Analyze: one-shot generation from the command line
  • History: list and read previously persisted analyses

Examples:
  # Start the API server
  adpulse serve

  # Generate (or read the cached) analysis for all campaigns
  adpulse analyze

  # List the trailing 30 days of analyses for a fingerprint
  adpulse history --fingerprint all-245-1582340

  # Inspect or clean the analysis cache
  adpulse cache stats`,
		Version: "1.2.0",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .adpulse.yaml)")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewAnalyzeCmd())
	rootCmd.AddCommand(NewHistoryCmd())
	rootCmd.AddCommand(NewCacheCmd())

	cobra.OnInitialize(initConfig)

	return rootCmd
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v\n", err)
		// Don't exit - allow running with just environment variables
		return
	}
	logger.SetLevel(cfg.App.LogLevel)
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
