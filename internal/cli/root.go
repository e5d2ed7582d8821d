// Package cli implements the mathrag command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mathrag/internal/config"
	"mathrag/internal/logger"
)

var (
	configPath string
	logLevel   string

	appConfig *config.AppConfig
	appLogger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mathrag",
	Short: "Retrieval tools for math specialist agents",
	Long: `mathrag indexes a course document and serves page-cited passages to
math specialist agents. When the knowledge base is unavailable the tools
answer with an explicit fallback notice instead of failing.

Configuration is read from --config, ./config.yaml or
~/.config/mathrag/config.yaml (created with defaults on first run).`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
}

// Execute runs the command tree.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var (
		cfg *config.AppConfig
		err error
	)
	if configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	appConfig = cfg
	appLogger = logger.Console(level)
	return nil
}
