package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

func joinNames(names []string) string {
	return strings.Join(names, ",")
}

func splitNames(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// CreateRun creates a new run in the running state.
func (s *SQLiteStore) CreateRun(ctx context.Context, outputsDir string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run := &Run{
		ID:         generateID(),
		Status:     RunStatusRunning,
		OutputsDir: outputsDir,
		StartedAt:  time.Now().UTC(),
	}

	s.logger.Debug("creating run", slog.String("id", run.ID))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, outputs_dir, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Status), run.OutputsDir, formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	return run, nil
}

// CompleteRun records the final status of a run together with the datasets
// it found.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, loaded, missing []string, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, loaded = ?, missing = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), joinNames(loaded), joinNames(missing), formatTime(time.Now()), errVal, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	s.logger.Debug("completed run", slog.String("id", id), slog.String("status", string(status)))
	return nil
}

const runColumns = `id, status, outputs_dir, loaded, missing, started_at, completed_at, error`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                     Run
		status, loaded, missing string
		startedAt               string
		completedAt, errMsg     sql.NullString
	)
	if err := row.Scan(&run.ID, &status, &run.OutputsDir, &loaded, &missing, &startedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	run.Loaded = splitNames(loaded)
	run.Missing = splitNames(missing)
	run.Error = errMsg.String

	t, err := parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	run.StartedAt = t

	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at %q: %w", completedAt.String, err)
		}
		run.CompletedAt = &t
	}
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordChart stores the outcome of one chart. Recording the same analysis
// twice for a run replaces the earlier record.
func (s *SQLiteStore) RecordChart(ctx context.Context, rec ChartRecord) error {
	if s.db == nil {
		return errNotOpened
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_charts (run_id, analysis, status, path, reason) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, analysis) DO UPDATE SET status = excluded.status, path = excluded.path, reason = excluded.reason`,
		rec.RunID, rec.Analysis, string(rec.Status), rec.Path, rec.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to record chart %s: %w", rec.Analysis, err)
	}
	return nil
}

// ChartsForRun returns the chart records of a run in insertion order.
func (s *SQLiteStore) ChartsForRun(ctx context.Context, runID string) ([]ChartRecord, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, analysis, status, path, reason FROM run_charts WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list charts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ChartRecord
	for rows.Next() {
		var rec ChartRecord
		var status string
		if err := rows.Scan(&rec.RunID, &rec.Analysis, &status, &rec.Path, &rec.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan chart: %w", err)
		}
		rec.Status = ChartStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}
