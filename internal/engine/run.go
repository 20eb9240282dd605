package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mophones/creditviz/internal/analysis"
	"github.com/mophones/creditviz/internal/chart"
	"github.com/mophones/creditviz/internal/dataset"
	"github.com/mophones/creditviz/internal/state"
)

// NoOutputsMessage is printed when none of the datasets exist.
const NoOutputsMessage = "No output files found. Please run dbt models first."

// Outcome is what happened to one analysis. Status is empty when the result
// was computed without rendering.
type Outcome struct {
	Analysis string            `json:"analysis"`
	Title    string            `json:"title"`
	Status   state.ChartStatus `json:"status"`
	Path     string            `json:"path,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Result   analysis.Result   `json:"-"`
}

// Skipped reports whether the analysis did not produce a chart.
func (o Outcome) Skipped() bool {
	return o.Status == state.ChartStatusSkipped
}

// RunOptions selects what a run does.
type RunOptions struct {
	// Only restricts the run to the named analyses; empty runs all
	Only []string
	// NoRender computes results without writing charts
	NoRender bool
}

// RunResult summarises a run.
type RunResult struct {
	Run       *state.Run       `json:"run"`
	Catalog   *dataset.Catalog `json:"-"`
	Outcomes  []Outcome        `json:"outcomes"`
	NoOutputs bool             `json:"no_outputs"`
}

// Rendered returns the outcomes that produced a chart.
func (r *RunResult) Rendered() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == state.ChartStatusRendered {
			out = append(out, o)
		}
	}
	return out
}

// Result returns the analysis result by name, or nil if it did not run.
func (r *RunResult) Result(name string) analysis.Result {
	for _, o := range r.Outcomes {
		if o.Analysis == name {
			return o.Result
		}
	}
	return nil
}

// Run loads the datasets, then runs and renders every selected analysis in
// order. Missing inputs skip an analysis; any other failure is recorded
// against its chart and fails the run.
// When no dataset exists at all the run completes with NoOutputs set.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	selected, err := analysis.Select(opts.Only)
	if err != nil {
		return nil, err
	}

	e.logger.Info("starting run", "outputs_dir", e.outputsDir, "analyses", len(selected))

	run, err := e.store.CreateRun(ctx, e.outputsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	e.logger.Debug("created run", "run_id", run.ID)

	res := &RunResult{}
	runErr := e.run(ctx, run.ID, selected, opts, res)

	var loaded, missing []string
	if res.Catalog != nil {
		loaded, missing = res.Catalog.Names(), res.Catalog.Missing()
	}
	status, errMsg := state.RunStatusCompleted, ""
	if runErr != nil {
		status, errMsg = state.RunStatusFailed, runErr.Error()
		e.logger.Info("run failed", "run_id", run.ID, "error", errMsg)
	} else {
		e.logger.Info("run completed", "run_id", run.ID)
	}
	if err := e.store.CompleteRun(ctx, run.ID, status, loaded, missing, errMsg); err != nil {
		return nil, errors.Join(runErr, err)
	}

	res.Run, err = e.store.GetRun(ctx, run.ID)
	if err != nil {
		return nil, errors.Join(runErr, err)
	}
	return res, runErr
}

func (e *Engine) run(ctx context.Context, runID string, selected []analysis.Analysis, opts RunOptions, res *RunResult) error {
	cat, err := e.LoadDatasets(ctx)
	if err != nil {
		return err
	}
	res.Catalog = cat

	if cat.Empty() {
		e.logger.Warn(NoOutputsMessage)
		res.NoOutputs = true
		return nil
	}

	for _, a := range selected {
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := e.runOne(ctx, a, cat, opts)
		if err != nil {
			out.Status, out.Reason = state.ChartStatusFailed, err.Error()
		}
		res.Outcomes = append(res.Outcomes, out)

		if opts.NoRender {
			if err != nil {
				return err
			}
			continue
		}
		if recErr := e.store.RecordChart(ctx, state.ChartRecord{
			RunID:    runID,
			Analysis: out.Analysis,
			Status:   out.Status,
			Path:     out.Path,
			Reason:   out.Reason,
		}); recErr != nil {
			return errors.Join(err, recErr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runOne(ctx context.Context, a analysis.Analysis, cat *dataset.Catalog, opts RunOptions) (Outcome, error) {
	out := Outcome{Analysis: a.Name(), Title: a.Title()}
	start := time.Now()

	result, err := analysis.Execute(ctx, a, e.db.DB(), cat)
	if errors.Is(err, analysis.ErrSkipped) {
		e.logger.Warn("skipping analysis", "analysis", a.Name(), "reason", err.Error())
		out.Status, out.Reason = state.ChartStatusSkipped, err.Error()
		return out, nil
	}
	if err != nil {
		return out, err
	}
	out.Result = result

	if opts.NoRender {
		return out, nil
	}

	path, err := chart.Render(result, e.chartsDir, chart.Options{DPI: e.dpi})
	if errors.Is(err, chart.ErrNothingToDraw) {
		e.logger.Warn("nothing to draw", "analysis", a.Name())
		out.Status, out.Reason = state.ChartStatusSkipped, err.Error()
		return out, nil
	}
	if err != nil {
		return out, fmt.Errorf("%s: %w", a.Name(), err)
	}

	out.Status, out.Path = state.ChartStatusRendered, path
	e.logger.Info("rendered chart", "analysis", a.Name(), "path", path, "duration", time.Since(start))
	return out, nil
}

// Analyze loads the datasets and computes the selected analyses without
// rendering or recording anything.
func (e *Engine) Analyze(ctx context.Context, only []string) ([]Outcome, *dataset.Catalog, error) {
	selected, err := analysis.Select(only)
	if err != nil {
		return nil, nil, err
	}
	cat, err := e.LoadDatasets(ctx)
	if err != nil {
		return nil, nil, err
	}

	outcomes := make([]Outcome, 0, len(selected))
	for _, a := range selected {
		out, err := e.runOne(ctx, a, cat, RunOptions{NoRender: true})
		if err != nil {
			return nil, cat, err
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, cat, nil
}
