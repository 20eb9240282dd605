// Package state records analysis runs in a SQLite database.
// It tracks when each run started and finished, which datasets were found and
// what happened to every chart.
package state

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ChartStatus is the outcome of one chart within a run.
type ChartStatus string

// Chart statuses.
const (
	ChartStatusRendered ChartStatus = "rendered"
	ChartStatusSkipped  ChartStatus = "skipped"
	ChartStatusFailed   ChartStatus = "failed"
)

// Run is one invocation of the analysis pipeline.
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	OutputsDir  string     `json:"outputs_dir"`
	Loaded      []string   `json:"loaded"`
	Missing     []string   `json:"missing"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// ChartRecord is the outcome of one analysis chart.
type ChartRecord struct {
	RunID    string      `json:"run_id"`
	Analysis string      `json:"analysis"`
	Status   ChartStatus `json:"status"`
	Path     string      `json:"path,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// Store persists run history.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	CreateRun(ctx context.Context, outputsDir string) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, loaded, missing []string, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	RecordChart(ctx context.Context, rec ChartRecord) error
	ChartsForRun(ctx context.Context, runID string) ([]ChartRecord, error)
}
