// Package commands implements the semdrift CLI.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/asif-amar/semdrift/internal/config"
)

var (
	configPath string
	verbose    bool
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semdrift",
		Short: "Measure semantic drift through multilingual translation chains",
		Long: `Semdrift runs controlled degradation experiments: sentences are
corrupted with spelling errors at fixed rates, pushed through a chain of
LLM translations (e.g. English → French → Hebrew → English), and the
round-trip result is scored against the original with embedding-based
distance metrics.

A typical session:

  semdrift prepare --input sentences.json
  semdrift run exp_20260115_093000
  semdrift analyze exp_20260115_093000
  semdrift report exp_20260115_093000 --summary`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging regardless of configured level")

	cmd.AddCommand(NewPrepareCmd())
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewArchiveCmd())
	cmd.AddCommand(NewInfoCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the CLI with the given context. The context is cancelled on
// SIGINT/SIGTERM by main, which aborts in-flight provider calls.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// loadConfig loads .env, reads the configuration file and installs the
// default logger at the configured level. Every subcommand that needs
// configuration goes through here.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found — copy configs/example.yaml to get started", configPath)
		}
		return nil, err
	}

	slog.SetDefault(newLogger(cfg.LogLevel))
	return cfg, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
