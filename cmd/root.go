// Package cmd provides the navia command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/SankrityaT/Navia-sub000/core/config"
	"github.com/SankrityaT/Navia-sub000/core/storage"
	"github.com/spf13/cobra"
)

// =============================================================================
// Global Flags
// =============================================================================

var (
	flagLogLevel    string
	flagLogFormat   string
	flagProjectRoot string
	flagProvider    string
	flagModel       string
)

// logLevel is shared with the config watcher so a reload can change
// verbosity without rebuilding the handler.
var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:   "navia",
	Short: "Navia - executive function coaching for neurodivergent adults",
	Long: `Navia routes questions about money, work and everyday life to domain
coaches, breaks overwhelming tasks into small steps and merges the answers.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&flagProjectRoot, "project", ".", "directory holding the .navia project config")
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "llm provider: groq, openai, anthropic, google, scripted")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "llm model override")
}

func Execute() error {
	return rootCmd.Execute()
}

// =============================================================================
// Shared Setup
// =============================================================================

// loadConfig resolves directories, loads the layered config with CLI flags
// on top and installs the process logger.
func loadConfig() (*config.Manager, *storage.Dirs, error) {
	dirs, err := storage.ResolveDirs()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve directories: %w", err)
	}

	manager := config.NewManager(dirs,
		config.WithProjectRoot(flagProjectRoot),
		config.WithOverrides(flagOverrides()),
	)
	if err := manager.Load(); err != nil {
		return nil, nil, err
	}

	slog.SetDefault(newLogger(manager.Get().Logging))
	return manager, dirs, nil
}

func flagOverrides() *config.Config {
	return &config.Config{
		LLM:     config.LLMConfig{Provider: flagProvider, Model: flagModel},
		Logging: config.LoggingConfig{Level: flagLogLevel, Format: flagLogFormat},
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	logLevel.Set(parseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
