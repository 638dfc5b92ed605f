package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/actionsum/focustrack/internal/config"
	"github.com/actionsum/focustrack/internal/logging"
	"github.com/actionsum/focustrack/internal/version"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "focustrack",
	Short: "Application focus time tracker",
	Long: `focustrack polls the foreground application, matches it against your tracked
applications and records one time session per focused tracked application.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: <user config dir>/focustrack/focustrack.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and builds the root logger from it.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	return cfg, logger, nil
}
