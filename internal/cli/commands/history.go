package commands

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mophones/creditviz/internal/cli/output"
	"github.com/mophones/creditviz/internal/state"
)

// runHistory is one run with its chart outcomes.
type runHistory struct {
	*state.Run
	Charts []state.ChartRecord `json:"charts"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent analysis runs",
		Long:  `List recorded analyze runs, newest first, with their chart outcomes.`,
		Example: `  creditviz history
  creditviz history --limit 5 -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistoryCmd(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, limit int) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	store := cc.Engine.Store()
	if limit <= 0 {
		limit = -1
	}
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	history := make([]runHistory, 0, len(runs))
	for _, run := range runs {
		charts, err := store.ChartsForRun(ctx, run.ID)
		if err != nil {
			return err
		}
		history = append(history, runHistory{Run: run, Charts: charts})
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(history)
	}

	if len(history) == 0 {
		r.Muted("No runs recorded yet. Run 'creditviz analyze' first.")
		return nil
	}

	r.Header(1, "Recent runs")
	rows := make([][]string, 0, len(history))
	for _, h := range history {
		rendered := 0
		for _, c := range h.Charts {
			if c.Status == state.ChartStatusRendered {
				rendered++
			}
		}
		rows = append(rows, []string{
			h.ID,
			string(h.Status),
			h.StartedAt.Local().Format(time.DateTime),
			h.Duration().Round(time.Millisecond).String(),
			strconv.Itoa(rendered) + "/" + strconv.Itoa(len(h.Charts)),
			strings.Join(h.Missing, ", "),
		})
	}
	r.Table([]string{"run", "status", "started", "duration", "charts", "missing inputs"}, rows)
	return nil
}
