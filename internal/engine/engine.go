// Package engine runs the analysis pipeline.
// It loads the pipeline outputs, runs each analysis, renders its chart and
// records the outcome in the state store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mophones/creditviz/internal/adapter"
	"github.com/mophones/creditviz/internal/chart"
	"github.com/mophones/creditviz/internal/dataset"
	"github.com/mophones/creditviz/internal/state"
)

// Engine orchestrates loading, analysis and rendering.
type Engine struct {
	// Database adapter (lazy initialized)
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	logger *slog.Logger

	store      state.Store
	outputsDir string
	chartsDir  string
	dpi        int

	catalog *dataset.Catalog
}

// Config holds engine configuration.
type Config struct {
	// OutputsDir is the directory holding the pipeline CSV outputs
	OutputsDir string
	// ChartsDir is where PNGs are written; defaults to OutputsDir
	ChartsDir string
	// DPI is the chart resolution; defaults to chart.DefaultDPI
	DPI int
	// StatePath is the path to the SQLite state database; empty for in-memory
	StatePath string
	// Threads limits DuckDB worker threads; zero uses the DuckDB default
	Threads int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. The analytical database is only connected when
// datasets are first loaded.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "outputs_dir", cfg.OutputsDir, "state_path", cfg.StatePath)

	statePath := cfg.StatePath
	if statePath == "" {
		statePath = state.MemoryPath
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(statePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	chartsDir := cfg.ChartsDir
	if chartsDir == "" {
		chartsDir = cfg.OutputsDir
	}
	dpi := cfg.DPI
	if dpi <= 0 {
		dpi = chart.DefaultDPI
	}

	return &Engine{
		dbConfig:   adapter.Config{Threads: cfg.Threads},
		logger:     logger,
		store:      store,
		outputsDir: cfg.OutputsDir,
		chartsDir:  chartsDir,
		dpi:        dpi,
	}, nil
}

// ensureDBConnected lazily connects to the analytical database.
func (e *Engine) ensureDBConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to database", "threads", e.dbConfig.Threads)

	db := adapter.NewDuckDBAdapter()
	if err := db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	e.db = db
	e.dbConnected = true
	return nil
}

// LoadDatasets loads the pipeline outputs. The catalog is cached, so later
// calls return the first load.
func (e *Engine) LoadDatasets(ctx context.Context) (*dataset.Catalog, error) {
	if e.catalog != nil {
		return e.catalog, nil
	}
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}

	cat, err := dataset.NewLoader(e.db, e.logger).Load(ctx, e.outputsDir)
	if err != nil {
		return nil, err
	}
	e.catalog = cat
	return cat, nil
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %w", errors.Join(errs...))
	}
	return nil
}

// --- Getters (public accessors) ---

// DB returns the analytical database adapter, connecting it if needed.
func (e *Engine) DB(ctx context.Context) (adapter.Adapter, error) {
	if err := e.ensureDBConnected(ctx); err != nil {
		return nil, err
	}
	return e.db, nil
}

// Store returns the state store.
func (e *Engine) Store() state.Store {
	return e.store
}

// OutputsDir returns the directory the datasets are read from.
func (e *Engine) OutputsDir() string {
	return e.outputsDir
}

// ChartsDir returns the directory charts are written to.
func (e *Engine) ChartsDir() string {
	return e.chartsDir
}
