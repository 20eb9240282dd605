package analysis

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mophones/creditviz/internal/adapter"
	"github.com/mophones/creditviz/internal/dataset"
)

// SegmentDimension is a customer attribute default rates are broken down by.
type SegmentDimension struct {
	Column string
	Label  string
}

// SegmentDimensions lists the breakdowns in panel order.
var SegmentDimensions = []SegmentDimension{
	{Column: "age_band", Label: "Age Band"},
	{Column: "income_band", Label: "Income Band"},
	{Column: "region", Label: "Region"},
}

// GroupMean is the mean default rate of one segment value. Mean is NaN when
// every rate in the group is null.
type GroupMean struct {
	Key  string  `json:"key"`
	Mean float64 `json:"mean"`
}

// SegmentBreakdown is the mean default rate per value of one dimension,
// ordered by value.
type SegmentBreakdown struct {
	Dimension SegmentDimension `json:"dimension"`
	Groups    []GroupMean      `json:"groups"`
}

// SegmentResult holds one breakdown per entry of SegmentDimensions.
type SegmentResult struct {
	Breakdowns []SegmentBreakdown `json:"breakdowns"`
}

// AnalysisName implements Result.
func (*SegmentResult) AnalysisName() string { return NameSegments }

// SegmentPerformance compares default rates across customer segments.
type SegmentPerformance struct{}

func (SegmentPerformance) Name() string    { return NameSegments }
func (SegmentPerformance) Title() string   { return "Default Rate by Segment" }
func (SegmentPerformance) Dataset() string { return dataset.SegmentMetrics }

func (SegmentPerformance) RequiredColumns() []string {
	cols := make([]string, 0, len(SegmentDimensions)+1)
	for _, d := range SegmentDimensions {
		cols = append(cols, d.Column)
	}
	return append(cols, "default_rate")
}

// Run implements Analysis.
func (SegmentPerformance) Run(ctx context.Context, q Querier, _ *dataset.Catalog) (Result, error) {
	res := &SegmentResult{}
	for _, dim := range SegmentDimensions {
		groups, err := meanByGroup(ctx, q, dim.Column)
		if err != nil {
			return nil, err
		}
		res.Breakdowns = append(res.Breakdowns, SegmentBreakdown{Dimension: dim, Groups: groups})
	}
	return res, nil
}

func meanByGroup(ctx context.Context, q Querier, column string) ([]GroupMean, error) {
	col := adapter.QuoteIdent(column)
	query := fmt.Sprintf(`
SELECT CAST(%[1]s AS VARCHAR) AS group_key, avg(TRY_CAST(default_rate AS DOUBLE)) AS mean
FROM segment_metrics
WHERE %[1]s IS NOT NULL
GROUP BY %[1]s
ORDER BY %[1]s`, col)

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("group default rate by %s: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	var groups []GroupMean
	for rows.Next() {
		var g GroupMean
		var mean sql.NullFloat64
		if err := rows.Scan(&g.Key, &mean); err != nil {
			return nil, fmt.Errorf("scan %s group: %w", column, err)
		}
		g.Mean = nullFloat(mean)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s groups: %w", column, err)
	}
	return groups, nil
}
