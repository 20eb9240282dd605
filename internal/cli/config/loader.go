package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// envPrefix prefixes every environment override, e.g. CREDITVIZ_DPI.
const envPrefix = "CREDITVIZ_"

// flagKeys maps CLI flag names to config keys. Flags not listed here are
// command options and never reach the config.
var flagKeys = map[string]string{
	"outputs-dir": "outputs_dir",
	"charts-dir":  "charts_dir",
	"dpi":         "dpi",
	"state":       "state_path",
	"verbose":     "verbose",
	"output":      "output",
	"port":        "viewer.port",
	"no-open":     "viewer.auto_open",
	"no-watch":    "viewer.watch",
}

var (
	configFileUsed string
	currentConfig  *Config
)

// findProjectRootUpward searches upward from startDir for creditviz.yaml.
// Returns empty string if not found within maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Directory of an explicit --config file
//  2. Search upward from CWD for creditviz.yaml
//  3. Current working directory
func inferProjectRoot(cfgFile string) string {
	if cfgFile != "" {
		if abs, err := filepath.Abs(cfgFile); err == nil {
			return filepath.Dir(abs)
		}
	}

	cwd, err := os.Getwd()
	if err != nil || cwd == "" {
		return "."
	}
	if root := findProjectRootUpward(cwd); root != "" {
		return root
	}
	return cwd
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig clears the loaded configuration. Used for testing.
func ResetConfig() {
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from defaults, the project config file,
// a .env file, CREDITVIZ_* environment variables and explicitly set flags,
// in increasing precedence.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	projectRoot := inferProjectRoot(cfgFile)

	// Paths given as flags are relative to the working directory; all
	// others resolve against the project root.
	flagPaths := make(map[string]string)
	if flags != nil {
		for _, name := range []string{"outputs-dir", "charts-dir", "state"} {
			f := flags.Lookup(name)
			if f == nil || !f.Changed || f.Value.String() == "" {
				continue
			}
			abs, err := filepath.Abs(f.Value.String())
			if err != nil {
				return nil, fmt.Errorf("invalid --%s: %w", name, err)
			}
			flagPaths[flagKeys[name]] = abs
		}
	}

	// 1. Defaults
	def := Default()
	if err := k.Load(confmap.Provider(map[string]any{
		"outputs_dir":      def.OutputsDir,
		"charts_dir":       def.ChartsDir,
		"dpi":              def.DPI,
		"state_path":       def.StatePath,
		"threads":          def.Threads,
		"verbose":          def.Verbose,
		"output":           def.OutputFormat,
		"viewer.port":      def.Viewer.Port,
		"viewer.auto_open": def.Viewer.AutoOpen,
		"viewer.watch":     def.Viewer.Watch,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	configFileUsed = cfgFile
	if configFileUsed == "" {
		candidate := filepath.Join(projectRoot, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			configFileUsed = candidate
		}
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. .env in the project root; never overrides the real environment
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 4. Environment variables
	// CREDITVIZ_OUTPUTS_DIR -> outputs_dir, CREDITVIZ_VIEWER_PORT -> viewer.port
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Flags that were explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			val := posflag.FlagVal(flags, f)
			if strings.HasPrefix(f.Name, "no-") {
				b, _ := val.(bool)
				return key, !b
			}
			return key, val
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = projectRoot

	for key, dst := range map[string]*string{
		"outputs_dir": &cfg.OutputsDir,
		"charts_dir":  &cfg.ChartsDir,
		"state_path":  &cfg.StatePath,
	} {
		if abs, ok := flagPaths[key]; ok {
			*dst = abs
			continue
		}
		*dst = resolvePathRelativeTo(*dst, projectRoot)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if rest, ok := strings.CutPrefix(key, "viewer_"); ok {
		return "viewer." + rest
	}
	return key
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the configuration loaded by the last LoadConfig.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() any {
	return loggerKey{}
}

// NewLogger returns the CLI logger: text on w at Info, or Debug when verbose.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}
