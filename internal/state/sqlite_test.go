package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(nil)
	if err := store.Open(MemoryPath); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)

	if err := store.Open(MemoryPath); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestSQLiteStore_OpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".creditviz", "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	defer func() { _ = store.Close() }()
	require.NoError(t, store.Migrate())

	assert.FileExists(t, path)
	assert.Equal(t, path, store.Path())
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "run_charts"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
			continue
		}
		_ = rows.Close()
	}

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	// running again is a no-op
	require.NoError(t, store.Migrate())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	_, err := store.CreateRun(ctx, "outputs")
	assert.ErrorIs(t, err, errNotOpened)
	_, err = store.ListRuns(ctx, 10)
	assert.ErrorIs(t, err, errNotOpened)
	assert.ErrorIs(t, store.Migrate(), errNotOpened)
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name        string
		status      RunStatus
		loaded      []string
		missing     []string
		errMsg      string
		wantMissing []string
	}{
		{
			name:    "completed with all datasets",
			status:  RunStatusCompleted,
			loaded:  []string{"nps_linkage_detail", "roll_rates"},
			missing: nil,
		},
		{
			name:        "completed with missing datasets",
			status:      RunStatusCompleted,
			loaded:      []string{"roll_rates"},
			missing:     []string{"portfolio_kpis", "segment_metrics"},
			wantMissing: []string{"portfolio_kpis", "segment_metrics"},
		},
		{
			name:   "failed",
			status: RunStatusFailed,
			errMsg: "No output files found. Please run dbt models first.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ctx := context.Background()

			run, err := store.CreateRun(ctx, "/data/outputs")
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, RunStatusRunning, run.Status)
			assert.Zero(t, run.Duration())

			require.NoError(t, store.CompleteRun(ctx, run.ID, tt.status, tt.loaded, tt.missing, tt.errMsg))

			got, err := store.GetRun(ctx, run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, "/data/outputs", got.OutputsDir)
			assert.Equal(t, tt.loaded, got.Loaded)
			assert.Equal(t, tt.wantMissing, got.Missing)
			assert.Equal(t, tt.errMsg, got.Error)
			require.NotNil(t, got.CompletedAt)
			assert.WithinDuration(t, run.StartedAt, got.StartedAt, time.Microsecond)
			assert.GreaterOrEqual(t, got.Duration(), time.Duration(0))
		})
	}
}

func TestSQLiteStore_GetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	err = store.CompleteRun(context.Background(), "missing", RunStatusCompleted, nil, nil, "")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	for range 3 {
		run, err := store.CreateRun(ctx, "outputs")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID, "newest first")
	assert.Equal(t, ids[0], runs[2].ID)

	runs, err = store.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLiteStore_Charts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	run, err := store.CreateRun(ctx, "outputs")
	require.NoError(t, err)

	records := []ChartRecord{
		{RunID: run.ID, Analysis: "nps", Status: ChartStatusRendered, Path: "outputs/nps_analysis.png"},
		{RunID: run.ID, Analysis: "portfolio", Status: ChartStatusSkipped, Reason: "portfolio_kpis not loaded"},
	}
	for _, rec := range records {
		require.NoError(t, store.RecordChart(ctx, rec))
	}

	got, err := store.ChartsForRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	// re-recording replaces
	records[1].Status = ChartStatusRendered
	records[1].Reason = ""
	records[1].Path = "outputs/portfolio_trends.png"
	require.NoError(t, store.RecordChart(ctx, records[1]))

	got, err = store.ChartsForRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, records, got)

	none, err := store.ChartsForRun(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_RecordChart_UnknownRun(t *testing.T) {
	store := setupTestStore(t)

	err := store.RecordChart(context.Background(), ChartRecord{RunID: "nope", Analysis: "nps", Status: ChartStatusRendered})
	assert.Error(t, err, "foreign key rejects charts without a run")
}
