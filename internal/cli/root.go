// Package cli holds the latexcv command tree.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"latexcv/internal/config"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "latexcv",
	Short: "Turn résumé PDFs into LaTeX",
	Long:  "latexcv extracts the text of a résumé PDF, rewrites it as LaTeX in one of several templates and compiles it back to PDF.",
	// no subcommand means serve
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: LATEXCV_CONFIG env var or ./config.yaml when present)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("command failed", "error", err)
		return 1
	}
	return 0
}

// loadConfig resolves the config path and parses it.
// Priority: --config > LATEXCV_CONFIG > ./config.yaml (only if it exists) > env only.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("LATEXCV_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return config.Load(path)
}

func setupLogger(cfg config.LogConfig, dbg bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if dbg {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// setup loads configuration and installs the process logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger := setupLogger(cfg.Log, debug, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}
