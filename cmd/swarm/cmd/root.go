package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/swarm/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "swarm",
	Short: "Multi-advisor trading decision pipeline and strategy lab",
	Long: `Swarm turns a panel of advisor opinions into sized, risk-checked trades.

It provides tools for:
  - Backtesting strategies over candle CSVs and recording the runs
  - Promoting or rejecting strategies through the lab gate
  - Running the live decision loop against a dry-run executor
  - Inspecting the decision journal

Complete documentation is available at https://github.com/rustyeddy/swarm`,
	SilenceUsage: true,
}

var (
	logLevel  string
	logFormat string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")
}

// cliLogger builds the logger for commands that do not load a config file.
func cliLogger() (zerolog.Logger, error) {
	return logging.New(logging.Config{Level: logLevel, Format: logFormat, Output: "stderr"})
}
