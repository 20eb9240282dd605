// Package config provides configuration management for the creditviz CLI.
package config

// ViewerConfig holds configuration for the chart viewer.
type ViewerConfig struct {
	Port     int  `koanf:"port" yaml:"port" validate:"min=1,max=65535"`
	AutoOpen bool `koanf:"auto_open" yaml:"auto_open"`
	Watch    bool `koanf:"watch" yaml:"watch"`
}

// Config holds all CLI configuration options.
type Config struct {
	OutputsDir   string       `koanf:"outputs_dir" yaml:"outputs_dir" validate:"required"`
	ChartsDir    string       `koanf:"charts_dir" yaml:"charts_dir"`
	DPI          int          `koanf:"dpi" yaml:"dpi" validate:"min=72,max=1200"`
	StatePath    string       `koanf:"state_path" yaml:"state_path" validate:"required"`
	Threads      int          `koanf:"threads" yaml:"threads,omitempty" validate:"min=0"`
	Verbose      bool         `koanf:"verbose" yaml:"verbose"`
	OutputFormat string       `koanf:"output" yaml:"output" validate:"oneof=auto text markdown json"`
	Viewer       ViewerConfig `koanf:"viewer" yaml:"viewer"`

	// ProjectRoot is the directory relative paths were resolved against
	ProjectRoot string `koanf:"-" yaml:"-"`
}

// Default configuration values.
const (
	DefaultOutputsDir = "outputs"
	DefaultDPI        = 300
	DefaultStateFile  = ".creditviz/state.db"
	DefaultOutput     = "auto" // TTY=text, non-TTY=markdown
	DefaultViewerPort = 8766

	// ConfigFileName is the project configuration file.
	ConfigFileName = "creditviz.yaml"
)

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		OutputsDir:   DefaultOutputsDir,
		DPI:          DefaultDPI,
		StatePath:    DefaultStateFile,
		OutputFormat: DefaultOutput,
		Viewer: ViewerConfig{
			Port:     DefaultViewerPort,
			AutoOpen: true,
			Watch:    true,
		},
	}
}

// ResolvedChartsDir returns where charts are written.
func (c *Config) ResolvedChartsDir() string {
	if c.ChartsDir == "" {
		return c.OutputsDir
	}
	return c.ChartsDir
}
