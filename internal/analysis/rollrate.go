package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"slices"

	"github.com/mophones/creditviz/internal/dataset"
)

// RollRateResult is the pivot of mean roll rate from one status (row) to
// another (column). Cells with no observations are NaN.
type RollRateResult struct {
	From  []string    `json:"from_status"`
	To    []string    `json:"to_status"`
	Rates [][]float64 `json:"-"`
}

// AnalysisName implements Result.
func (*RollRateResult) AnalysisName() string { return NameRollRates }

// Rate returns the cell for a pair of statuses and whether it was observed.
func (r *RollRateResult) Rate(from, to string) (float64, bool) {
	i := slices.Index(r.From, from)
	j := slices.Index(r.To, to)
	if i < 0 || j < 0 {
		return nan, false
	}
	v := r.Rates[i][j]
	return v, !math.IsNaN(v)
}

// Range returns the smallest and largest observed rates. ok is false when
// no cell is observed.
func (r *RollRateResult) Range() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range r.Rates {
		for _, v := range row {
			if math.IsNaN(v) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
			ok = true
		}
	}
	return lo, hi, ok
}

// RollRateMatrix pivots roll rates between account statuses.
type RollRateMatrix struct{}

func (RollRateMatrix) Name() string    { return NameRollRates }
func (RollRateMatrix) Title() string   { return "Roll Rates Between Account Statuses" }
func (RollRateMatrix) Dataset() string { return dataset.RollRates }

func (RollRateMatrix) RequiredColumns() []string {
	return []string{"from_status", "to_status", "roll_rate"}
}

// Pairs whose rates are all null are left out, so a status with no
// observed rate gets no row or column. to_rank orders the columns by the
// to_status column's own type.
const rollRateSQL = `
SELECT
	CAST(from_status AS VARCHAR) AS from_key,
	CAST(to_status AS VARCHAR) AS to_key,
	dense_rank() OVER (ORDER BY to_status) AS to_rank,
	avg(TRY_CAST(roll_rate AS DOUBLE)) AS rate
FROM roll_rates
WHERE from_status IS NOT NULL AND to_status IS NOT NULL
GROUP BY from_status, to_status
HAVING avg(TRY_CAST(roll_rate AS DOUBLE)) IS NOT NULL
ORDER BY from_status, to_status`

// Run implements Analysis.
func (RollRateMatrix) Run(ctx context.Context, q Querier, _ *dataset.Catalog) (Result, error) {
	rows, err := q.QueryContext(ctx, rollRateSQL)
	if err != nil {
		return nil, fmt.Errorf("pivot roll rates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type cell struct {
		row, col int
		rate     float64
	}
	res := &RollRateResult{}
	var cells []cell
	for rows.Next() {
		var (
			from, to string
			rank     int
			rate     sql.NullFloat64
		)
		if err := rows.Scan(&from, &to, &rank, &rate); err != nil {
			return nil, fmt.Errorf("scan roll rate: %w", err)
		}
		if n := len(res.From); n == 0 || res.From[n-1] != from {
			res.From = append(res.From, from)
		}
		for len(res.To) < rank {
			res.To = append(res.To, "")
		}
		res.To[rank-1] = to
		cells = append(cells, cell{row: len(res.From) - 1, col: rank - 1, rate: nullFloat(rate)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roll rates: %w", err)
	}

	res.Rates = make([][]float64, len(res.From))
	for i := range res.Rates {
		res.Rates[i] = make([]float64, len(res.To))
		for j := range res.Rates[i] {
			res.Rates[i][j] = nan
		}
	}
	for _, c := range cells {
		res.Rates[c.row][c.col] = c.rate
	}

	return res, nil
}
