// Package cli provides the command-line interface for creditviz.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mophones/creditviz/internal/analysis"
	"github.com/mophones/creditviz/internal/cli/commands"
	"github.com/mophones/creditviz/internal/cli/config"
	"github.com/mophones/creditviz/internal/cli/output"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command. Without a subcommand it
// runs the analyses, like analyze.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	opts := &commands.AnalyzeOptions{}

	rootCmd := &cobra.Command{
		Use:   "creditviz",
		Short: "creditviz - credit analytics charts from pipeline outputs",
		Long: `creditviz reads the CSV outputs of the credit analytics pipeline and
renders NPS, portfolio, segment and roll-rate charts from them.

Run without a subcommand to render every chart whose inputs exist.`,
		Version: Version,
		Args:    cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger := config.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, config.LoggerKey(), logger))

			if file := config.GetConfigFileUsed(); file != "" {
				logger.Debug("using config file", "path", file)
			}
			logger.Debug("resolved paths", "outputs_dir", cfg.OutputsDir, "state_path", cfg.StatePath)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return commands.RunAnalyze(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go and DuckDB
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: creditviz.yaml in this or a parent directory)")
	pf.String("outputs-dir", "", "Directory holding the pipeline CSV outputs")
	pf.String("charts-dir", "", "Directory to write charts to (default: outputs dir)")
	pf.Int("dpi", 0, "Chart resolution in dots per inch")
	pf.String("state", "", "Path to the run history database")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format ("+strings.Join(output.Modes, "|")+")")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.Flags().StringSliceVar(&opts.Only, "only", nil, "Restrict to these analyses ("+strings.Join(analysis.Names(), ", ")+")")
	rootCmd.Flags().BoolVar(&opts.Show, "show", false, "Open the chart viewer after rendering")

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewInputsCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewViewCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for creditviz.

To load completions:

Bash:
  $ source <(creditviz completion bash)

Zsh:
  $ creditviz completion zsh > "${fpath[1]}/_creditviz"

Fish:
  $ creditviz completion fish | source

PowerShell:
  PS> creditviz completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
