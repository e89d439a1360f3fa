package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/agentic-research/dirworld/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to dirworld.hcl")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log_level (debug, info, warn, error)")
}

var rootCmd = &cobra.Command{
	Use:           "dirworld",
	Short:         "dirworld: walk a directory tree as a world of rooms",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads --config when given, the defaults otherwise, and applies
// flag overrides.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return config.Config{}, err
		}
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level, err := cfg.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
