package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"research/internal/app"
	"research/internal/config"
	"research/internal/logger"
)

var (
	cfgPath  string
	logLevel string
	jsonLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "research",
	Short: "Research assistant over your documents, memory, the web and arXiv",
	Long: `research answers questions from four evidence sources: indexed documents,
the conversation so far, a live web search and arXiv. Every answer names the
source it relies on, a confidence and citations.

Commands:
  ingest - index documents
  ask    - answer one question
  chat   - index documents and open the interactive chat
  status - show index diagnostics`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/research/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "log-json", false, "Emit logs as JSON")

	rootCmd.AddCommand(ingestCmd, askCmd, chatCmd, statusCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.AppConfig, error) {
	if cfgPath == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(cfgPath)
}

func newLogger(cfg *config.AppConfig, out io.Writer) logger.Logger {
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	lc := logger.DefaultConfig()
	lc.Level = logger.LogLevel(level)
	lc.JSON = cfg.Log.JSON || jsonLogs
	lc.Output = out
	return logger.NewLogger(lc)
}

// setup loads config and assembles the assistant, logging to out.
func setup(ctx context.Context, out io.Writer) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return app.Build(ctx, cfg, newLogger(cfg, out))
}
