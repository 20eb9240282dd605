package commands

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mophones/creditviz/internal/cli/config"
	"github.com/mophones/creditviz/internal/cli/output"
)

const configHeader = `# creditviz configuration
#
# Relative paths resolve against the directory holding this file. Every key
# can be overridden with a CREDITVIZ_* environment variable (for example
# CREDITVIZ_OUTPUTS_DIR or CREDITVIZ_VIEWER_PORT) or a command-line flag.

`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a default creditviz.yaml",
		Long: `Write a creditviz.yaml with the default settings.

The file marks the project root: creditviz searches upward from the working
directory for it and resolves relative paths against its location.`,
		Example: `  # Initialize in current directory
  creditviz init

  # Initialize next to the dbt project
  creditviz init ../credit-analytics

  # Overwrite an existing config
  creditviz init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			cfg := getConfig()
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", configPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	body, err := defaultConfigYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, body, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}

	r.StatusLine(configPath, "success", "")
	r.Println("")
	r.Success("creditviz project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Printf("  1. Point outputs_dir in %s at the pipeline CSV outputs\n", config.ConfigFileName)
	r.Println("  2. Run 'creditviz inputs' to check which datasets are found")
	r.Println("  3. Run 'creditviz analyze' to render the charts")
	r.Println("  4. Run 'creditviz view' to browse them")
	return nil
}

func defaultConfigYAML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config.Default()); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
