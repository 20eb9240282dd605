package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mophones/creditviz/internal/adapter"
	"github.com/mophones/creditviz/internal/dataset"
)

// PortfolioMetrics are the KPI columns plotted over time, in panel order.
var PortfolioMetrics = []string{
	"total_accounts",
	"current_accounts",
	"arrears_accounts",
	"default_accounts",
}

// Point is one observation of a metric.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// MetricSeries is a KPI over time. Present is false when the column is
// absent from the dataset, in which case Points is empty.
type MetricSeries struct {
	Metric  string  `json:"metric"`
	Present bool    `json:"present"`
	Points  []Point `json:"points"`
}

// PortfolioResult holds one series per entry of PortfolioMetrics.
type PortfolioResult struct {
	Series []MetricSeries `json:"series"`
}

// AnalysisName implements Result.
func (*PortfolioResult) AnalysisName() string { return NamePortfolio }

// PortfolioTrends tracks portfolio KPIs across reporting dates.
type PortfolioTrends struct{}

func (PortfolioTrends) Name() string    { return NamePortfolio }
func (PortfolioTrends) Title() string   { return "Portfolio Metrics Over Time" }
func (PortfolioTrends) Dataset() string { return dataset.PortfolioKPIs }

// RequiredColumns only lists the date; metric columns are optional and an
// absent one leaves its panel empty.
func (PortfolioTrends) RequiredColumns() []string {
	return []string{"reporting_date"}
}

// Run implements Analysis.
func (PortfolioTrends) Run(ctx context.Context, q Querier, cat *dataset.Catalog) (Result, error) {
	info, err := cat.Get(dataset.PortfolioKPIs)
	if err != nil {
		return nil, err
	}

	res := &PortfolioResult{Series: make([]MetricSeries, len(PortfolioMetrics))}
	var present []int
	selects := []string{"TRY_CAST(reporting_date AS TIMESTAMP) AS reporting_date"}
	for i, m := range PortfolioMetrics {
		res.Series[i] = MetricSeries{Metric: m, Present: info.HasColumn(m)}
		if res.Series[i].Present {
			present = append(present, i)
			selects = append(selects, fmt.Sprintf("TRY_CAST(%s AS DOUBLE)", adapter.QuoteIdent(m)))
		}
	}

	query := fmt.Sprintf(`
SELECT %s
FROM portfolio_kpis
WHERE TRY_CAST(reporting_date AS TIMESTAMP) IS NOT NULL
ORDER BY 1`, strings.Join(selects, ", "))

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read portfolio kpis: %w", err)
	}
	defer func() { _ = rows.Close() }()

	values := make([]sql.NullFloat64, len(present))
	dest := make([]any, 0, len(present)+1)
	var date time.Time
	dest = append(dest, &date)
	for i := range values {
		dest = append(dest, &values[i])
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan portfolio kpis: %w", err)
		}
		for j, si := range present {
			if !values[j].Valid {
				continue
			}
			res.Series[si].Points = append(res.Series[si].Points, Point{Date: date, Value: values[j].Float64})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio kpis: %w", err)
	}

	return res, nil
}
