// Package commands implements the creditviz subcommands.
package commands

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mophones/creditviz/internal/cli/config"
	"github.com/mophones/creditviz/internal/cli/output"
	"github.com/mophones/creditviz/internal/engine"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutEngine(cmd)

	eng, err := createEngine(cc.Cfg, cc.Logger)
	if err != nil {
		return nil, nil, err
	}
	cc.Engine = eng

	cleanup := func() {
		if err := eng.Close(); err != nil {
			cc.Logger.Warn("failed to close engine", "error", err)
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that don't need the datasets or run history.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the loaded configuration, or the defaults with
// CREDITVIZ_* overrides when commands run outside the root command (tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	cfg := config.Default()
	cfg.OutputsDir = getEnvOrDefault("CREDITVIZ_OUTPUTS_DIR", cfg.OutputsDir)
	cfg.ChartsDir = os.Getenv("CREDITVIZ_CHARTS_DIR")
	cfg.StatePath = getEnvOrDefault("CREDITVIZ_STATE_PATH", cfg.StatePath)
	cfg.OutputFormat = getEnvOrDefault("CREDITVIZ_OUTPUT", cfg.OutputFormat)
	if dpi, err := strconv.Atoi(os.Getenv("CREDITVIZ_DPI")); err == nil {
		cfg.DPI = dpi
	}
	return cfg
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	return engine.New(engine.Config{
		OutputsDir: cfg.OutputsDir,
		ChartsDir:  cfg.ResolvedChartsDir(),
		DPI:        cfg.DPI,
		StatePath:  cfg.StatePath,
		Threads:    cfg.Threads,
		Logger:     logger,
	})
}
