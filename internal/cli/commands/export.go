package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mophones/creditviz/internal/analysis"
	"github.com/mophones/creditviz/internal/engine"
	"github.com/mophones/creditviz/internal/export"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	File string
	Only []string
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the aggregated analysis tables to a spreadsheet",
		Long: `Compute the analyses and write their tables to an .xlsx workbook.

Each analysis gets one sheet (NPS, Portfolio, Segments, Roll Rates).
Analyses whose inputs are missing are left out. No charts are rendered and
nothing is recorded in the run history.`,
		Example: `  creditviz export
  creditviz export --file reports/credit.xlsx --only roll_rates`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.File, "file", "analysis.xlsx", "Workbook to write")
	cmd.Flags().StringSliceVar(&opts.Only, "only", nil, "Restrict to these analyses")

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cc.Renderer
	outcomes, cat, err := cc.Engine.Analyze(cmd.Context(), opts.Only)
	if err != nil {
		return err
	}
	if cat.Empty() {
		r.Println(engine.NoOutputsMessage)
		return nil
	}

	var results []analysis.Result
	for _, o := range outcomes {
		if o.Skipped() {
			r.Warning(o.Reason)
			continue
		}
		results = append(results, o.Result)
	}

	path, err := filepath.Abs(opts.File)
	if err != nil {
		return err
	}
	if err := export.WriteXLSX(path, results); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	cc.Logger.Debug("wrote workbook", "path", path, "sheets", len(results))
	r.Success(fmt.Sprintf("Exported %d analyses to %s", len(results), path))
	return nil
}
