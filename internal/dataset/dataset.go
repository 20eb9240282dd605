// Package dataset loads the CSV outputs of the credit-analytics pipeline into
// the analytical database and tracks which of them were present.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mophones/creditviz/internal/adapter"
)

// Dataset names. Each is read from <outputs dir>/<name>.csv and loaded into a
// table of the same name.
const (
	NPSByStatus       = "nps_by_status"
	NPSLinkageDetail  = "nps_linkage_detail"
	PortfolioKPIs     = "portfolio_kpis"
	RollRates         = "roll_rates"
	SegmentMetrics    = "segment_metrics"
	StatusTransitions = "status_transitions"
	VintageMetrics    = "vintage_metrics"
)

// Names lists every dataset in load order.
var Names = []string{
	NPSByStatus,
	NPSLinkageDetail,
	PortfolioKPIs,
	RollRates,
	SegmentMetrics,
	StatusTransitions,
	VintageMetrics,
}

// ExpectedColumns lists the columns the analyses read from each dataset.
// Datasets that are only passed through have no entry.
var ExpectedColumns = map[string][]string{
	NPSLinkageDetail: {"account_status", "nps_score"},
	PortfolioKPIs:    {"reporting_date", "total_accounts", "current_accounts", "arrears_accounts", "default_accounts"},
	RollRates:        {"from_status", "to_status", "roll_rate"},
	SegmentMetrics:   {"age_band", "income_band", "region", "default_rate"},
}

// ErrNotLoaded is returned when a dataset was not present on disk.
var ErrNotLoaded = errors.New("dataset not loaded")

// Path returns the CSV path for a dataset.
func Path(outputsDir, name string) string {
	return filepath.Join(outputsDir, name+".csv")
}

// Loader reads the dataset CSVs into an adapter.
type Loader struct {
	db     adapter.Adapter
	logger *slog.Logger
}

// NewLoader creates a loader writing into db. A nil logger discards.
func NewLoader(db adapter.Adapter, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{db: db, logger: logger}
}

// Load loads every dataset present in outputsDir. Missing files are logged
// and recorded on the catalog; a file that exists but cannot be read is an
// error.
func (l *Loader) Load(ctx context.Context, outputsDir string) (*Catalog, error) {
	cat := newCatalog(outputsDir)

	for _, name := range Names {
		path := Path(outputsDir, name)

		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				l.logger.Warn(fmt.Sprintf("%s not found", path), slog.String("dataset", name))
				cat.missing = append(cat.missing, name)
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		table, err := l.db.LoadCSV(ctx, name, path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}

		info := &Info{
			Name:    name,
			Path:    path,
			Rows:    table.RowCount,
			Columns: table.ColumnNames(),
		}
		cat.add(info)

		l.logger.Info(fmt.Sprintf("Loaded %s: %d rows", name, info.Rows),
			slog.String("dataset", name),
			slog.Int64("rows", info.Rows))
	}

	return cat, nil
}
