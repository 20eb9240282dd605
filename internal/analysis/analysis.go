// Package analysis computes the aggregates behind each chart from the loaded
// pipeline outputs.
//
// Every analysis declares the dataset and columns it needs. Requirements are
// checked against the catalog before any SQL runs; an unmet requirement skips
// the analysis rather than failing the whole run.
package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mophones/creditviz/internal/dataset"
)

// Analysis names, also used to select analyses on the command line.
const (
	NameNPS       = "nps"
	NamePortfolio = "portfolio"
	NameSegments  = "segments"
	NameRollRates = "roll_rates"
)

// ErrSkipped marks an analysis that could not run because its inputs were
// absent.
var ErrSkipped = errors.New("analysis skipped")

// Querier is satisfied by *sql.DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Result is the typed output of an analysis.
type Result interface {
	AnalysisName() string
}

// Analysis computes one Result from the catalog database.
type Analysis interface {
	Name() string
	Title() string
	Dataset() string
	RequiredColumns() []string
	Run(ctx context.Context, q Querier, cat *dataset.Catalog) (Result, error)
}

// All returns every analysis in execution order.
func All() []Analysis {
	return []Analysis{
		NPSLinkage{},
		PortfolioTrends{},
		SegmentPerformance{},
		RollRateMatrix{},
	}
}

// Names returns the names of every analysis in execution order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, a := range all {
		names[i] = a.Name()
	}
	return names
}

// Select returns the analyses named in only, in execution order. An empty
// selection returns all of them.
func Select(only []string) ([]Analysis, error) {
	if len(only) == 0 {
		return All(), nil
	}

	want := make(map[string]bool, len(only))
	for _, n := range only {
		want[strings.TrimSpace(n)] = true
	}

	var selected []Analysis
	for _, a := range All() {
		if want[a.Name()] {
			selected = append(selected, a)
			delete(want, a.Name())
		}
	}
	for n := range want {
		return nil, fmt.Errorf("unknown analysis %q (valid: %s)", n, strings.Join(Names(), ", "))
	}
	return selected, nil
}

// Check verifies that an analysis's dataset and columns are available.
// The returned error wraps ErrSkipped and explains why.
func Check(a Analysis, cat *dataset.Catalog) error {
	info, err := cat.Get(a.Dataset())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSkipped, err)
	}
	if missing := info.MissingColumns(a.RequiredColumns()); len(missing) > 0 {
		return fmt.Errorf("%w: %s is missing columns: %s", ErrSkipped, a.Dataset(), strings.Join(missing, ", "))
	}
	return nil
}

// Execute checks requirements and runs the analysis.
func Execute(ctx context.Context, a Analysis, q Querier, cat *dataset.Catalog) (Result, error) {
	if err := Check(a, cat); err != nil {
		return nil, err
	}
	res, err := a.Run(ctx, q, cat)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name(), err)
	}
	return res, nil
}

// nullFloat converts a nullable aggregate to NaN when absent.
func nullFloat(v sql.NullFloat64) float64 {
	if !v.Valid {
		return nan
	}
	return v.Float64
}
