package commands

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mophones/creditviz/internal/analysis"
	"github.com/mophones/creditviz/internal/cli/output"
	"github.com/mophones/creditviz/internal/engine"
	"github.com/mophones/creditviz/internal/state"
)

// AnalyzeOptions holds options for the analyze command.
type AnalyzeOptions struct {
	Only []string
	Show bool
}

// analyzeOutput is the JSON form of an analyze run.
type analyzeOutput struct {
	Run        *state.Run       `json:"run,omitempty"`
	Outcomes   []engine.Outcome `json:"outcomes"`
	NPSSummary []npsSummaryRow  `json:"nps_summary,omitempty"`
	Message    string           `json:"message,omitempty"`
}

// npsSummaryRow is an NPS group with NaN statistics encoded as null.
type npsSummaryRow struct {
	Status string   `json:"account_status"`
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	Count  int64    `json:"count"`
}

func npsSummary(nps *analysis.NPSResult) []npsSummaryRow {
	rows := make([]npsSummaryRow, 0, len(nps.Groups))
	for _, g := range nps.Groups {
		rows = append(rows, npsSummaryRow{Status: g.Status, Mean: finite(g.Mean), Median: finite(g.Median), Count: g.Count})
	}
	return rows
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the analyses and render the charts",
		Long: `Load the pipeline CSV outputs and render the credit analytics charts.

Every analysis whose input dataset is present produces a PNG in the charts
directory. Missing inputs skip the corresponding chart with a warning. The
run and each chart outcome are recorded in the state database.`,
		Example: `  # Render every chart
  creditviz analyze

  # Only the NPS and roll-rate charts
  creditviz analyze --only nps --only roll_rates

  # Render, then open the viewer
  creditviz analyze --show`,
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunAnalyze(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Only, "only", nil,
		fmt.Sprintf("Restrict to these analyses (%s)", strings.Join(analysis.Names(), ", ")))
	cmd.Flags().BoolVar(&opts.Show, "show", false, "Open the chart viewer after rendering")

	_ = cmd.RegisterFlagCompletionFunc("only", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return analysis.Names(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// RunAnalyze runs the analyses and prints the results. The root command
// calls it directly when no subcommand is given.
func RunAnalyze(cmd *cobra.Command, opts *AnalyzeOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	r := cc.Renderer
	res, err := cc.Engine.Run(cmd.Context(), engine.RunOptions{Only: opts.Only})
	if res == nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		out := analyzeOutput{Run: res.Run, Outcomes: res.Outcomes}
		if res.NoOutputs {
			out.Message = engine.NoOutputsMessage
		}
		if nps, ok := res.Result(analysis.NameNPS).(*analysis.NPSResult); ok {
			out.NPSSummary = npsSummary(nps)
		}
		if jerr := r.JSON(out); jerr != nil {
			return jerr
		}
		return err
	}

	if res.NoOutputs {
		r.Println(engine.NoOutputsMessage)
		return nil
	}

	renderOutcomes(r, res.Outcomes)
	if nps, ok := res.Result(analysis.NameNPS).(*analysis.NPSResult); ok {
		r.Println()
		renderNPSSummary(r, nps)
	}
	r.Println()
	renderRunSummary(r, res, cc.Engine.ChartsDir())

	if err != nil {
		return fmt.Errorf("analysis run failed: %w", err)
	}

	if opts.Show {
		return serveViewer(cmd, cc)
	}
	return nil
}

func renderOutcomes(r *output.Renderer, outcomes []engine.Outcome) {
	for _, o := range outcomes {
		if o.Skipped() {
			r.Warning(o.Reason)
		}
		detail := o.Path
		switch o.Status {
		case state.ChartStatusSkipped:
			detail = "skipped"
		case state.ChartStatusFailed:
			detail = o.Reason
		}
		r.StatusLine(o.Title, string(o.Status), detail)
	}
}

// renderNPSSummary prints the per-status NPS statistics.
func renderNPSSummary(r *output.Renderer, nps *analysis.NPSResult) {
	r.Header(2, "NPS Analysis Summary")
	rows := make([][]string, 0, len(nps.Groups))
	for _, g := range nps.Groups {
		rows = append(rows, []string{
			g.Status,
			output.FormatFloat(g.Mean, 2),
			output.FormatFloat(g.Median, 2),
			strconv.FormatInt(g.Count, 10),
		})
	}
	r.Table([]string{"account_status", "mean", "median", "count"}, rows)
}

func renderRunSummary(r *output.Renderer, res *engine.RunResult, chartsDir string) {
	var skipped, failed int
	for _, o := range res.Outcomes {
		switch o.Status {
		case state.ChartStatusSkipped:
			skipped++
		case state.ChartStatusFailed:
			failed++
		}
	}
	charts := fmt.Sprintf("%d rendered, %d skipped", len(res.Rendered()), skipped)
	if failed > 0 {
		charts += fmt.Sprintf(", %d failed", failed)
	}

	r.Header(2, "Run Summary")
	if res.Run != nil {
		r.KeyValue("Run", res.Run.ID)
		r.KeyValue("Status", string(res.Run.Status))
		r.KeyValue("Duration", res.Run.Duration().Round(time.Millisecond).String())
	}
	r.KeyValue("Charts", charts)
	r.KeyValue("Charts dir", chartsDir)
	if res.Catalog != nil {
		if missing := res.Catalog.Missing(); len(missing) > 0 {
			r.KeyValue("Missing inputs", strings.Join(missing, ", "))
		}
	}
	if res.Run != nil && res.Run.Error != "" {
		r.KeyValue("Error", res.Run.Error)
	}
}
