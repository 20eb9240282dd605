package export

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mophones/creditviz/internal/analysis"
)

func readSheets(t *testing.T, path string) (*excelize.File, []string) {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, f.GetSheetList()
}

func TestWriteXLSX(t *testing.T) {
	nan := math.NaN()
	jan := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)

	results := []analysis.Result{
		&analysis.NPSResult{Groups: []analysis.NPSGroup{
			{Status: "arrears", Mean: 5.5, Median: 5.5, Count: 2},
			{Status: "default", Mean: nan, Median: nan, Count: 0},
		}},
		&analysis.PortfolioResult{Series: []analysis.MetricSeries{
			{Metric: "total_accounts", Present: true, Points: []analysis.Point{{Date: feb, Value: 120}, {Date: jan, Value: 100}}},
			{Metric: "current_accounts", Present: true, Points: []analysis.Point{{Date: jan, Value: 80}}},
			{Metric: "arrears_accounts"},
		}},
		nil, // skipped analysis
		&analysis.RollRateResult{
			From:  []string{"arrears", "current"},
			To:    []string{"current", "default"},
			Rates: [][]float64{{0.3, 0.3}, {0.9, nan}},
		},
	}

	path := filepath.Join(t.TempDir(), "analysis.xlsx")
	require.NoError(t, WriteXLSX(path, results))

	f, sheets := readSheets(t, path)
	assert.Equal(t, []string{SheetNPS, SheetPortfolio, SheetRollRates}, sheets)

	rows, err := f.GetRows(SheetNPS)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"account_status", "mean", "median", "count"},
		{"arrears", "5.5", "5.5", "2"},
		{"default", "", "", "0"},
	}, rows)

	rows, err = f.GetRows(SheetPortfolio)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"reporting_date", "total_accounts", "current_accounts"},
		{"2024-01-31", "100", "80"},
		{"2024-02-29", "120"},
	}, rows)

	rows, err = f.GetRows(SheetRollRates)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"from_status", "current", "default"},
		{"arrears", "0.3", "0.3"},
		{"current", "0.9"},
	}, rows)
}

func TestWriteXLSX_Segments(t *testing.T) {
	res := &analysis.SegmentResult{Breakdowns: []analysis.SegmentBreakdown{
		{Dimension: analysis.SegmentDimensions[0], Groups: []analysis.GroupMean{{Key: "18-25", Mean: 15}}},
		{Dimension: analysis.SegmentDimensions[2], Groups: []analysis.GroupMean{{Key: "Coast", Mean: 20}, {Key: "Nairobi", Mean: 7.5}}},
	}}

	path := filepath.Join(t.TempDir(), "segments.xlsx")
	require.NoError(t, WriteXLSX(path, []analysis.Result{res}))

	f, sheets := readSheets(t, path)
	assert.Equal(t, []string{SheetSegments}, sheets)

	rows, err := f.GetRows(SheetSegments)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"dimension", "segment", "mean_default_rate"},
		{"age_band", "18-25", "15"},
		{"region", "Coast", "20"},
		{"region", "Nairobi", "7.5"},
	}, rows)
}

func TestWriteXLSX_NothingToExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	err := WriteXLSX(path, []analysis.Result{nil, nil})
	assert.ErrorIs(t, err, ErrNothingToExport)
	assert.NoFileExists(t, path)
}
