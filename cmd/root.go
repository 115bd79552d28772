package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/agvfleet/infra/logger"
)

var (
	cfgPath   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:           "agvfleet",
	Short:         "AGV fleet dispatch service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// stdout is reserved for command output
		return logger.Setup(os.Stderr, logFormat, logLevel)
	},
}

func init() {
	format := "json"
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		format = "console"
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", os.Getenv("LOG_LEVEL"), "minimum log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", format, "log format: json or console")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }
