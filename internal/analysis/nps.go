package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/mophones/creditviz/internal/dataset"
)

var nan = math.NaN()

// NPSGroup is the NPS distribution of one account status.
type NPSGroup struct {
	Status string    `json:"account_status"`
	Scores []float64 `json:"-"`
	Mean   float64   `json:"mean"`
	Median float64   `json:"median"`
	Count  int64     `json:"count"`
}

// NPSResult holds NPS scores grouped by account status, ordered by the
// status column's own type.
type NPSResult struct {
	Groups []NPSGroup `json:"groups"`
}

// AnalysisName implements Result.
func (*NPSResult) AnalysisName() string { return NameNPS }

// Statuses returns the status labels in group order.
func (r *NPSResult) Statuses() []string {
	out := make([]string, len(r.Groups))
	for i, g := range r.Groups {
		out[i] = g.Status
	}
	return out
}

// NPSLinkage relates NPS survey scores to credit account status.
type NPSLinkage struct{}

func (NPSLinkage) Name() string    { return NameNPS }
func (NPSLinkage) Title() string   { return "NPS by Account Status" }
func (NPSLinkage) Dataset() string { return dataset.NPSLinkageDetail }

func (NPSLinkage) RequiredColumns() []string {
	return []string{"account_status", "nps_score"}
}

const npsSummarySQL = `
SELECT
	CAST(account_status AS VARCHAR) AS status,
	avg(TRY_CAST(nps_score AS DOUBLE)) AS mean,
	median(TRY_CAST(nps_score AS DOUBLE)) AS median,
	count(TRY_CAST(nps_score AS DOUBLE)) AS n
FROM nps_linkage_detail
WHERE account_status IS NOT NULL
GROUP BY account_status
ORDER BY account_status`

const npsScoresSQL = `
SELECT
	CAST(account_status AS VARCHAR) AS status,
	TRY_CAST(nps_score AS DOUBLE) AS score
FROM nps_linkage_detail
WHERE account_status IS NOT NULL AND TRY_CAST(nps_score AS DOUBLE) IS NOT NULL
ORDER BY account_status, score`

// Run implements Analysis.
func (NPSLinkage) Run(ctx context.Context, q Querier, _ *dataset.Catalog) (Result, error) {
	rows, err := q.QueryContext(ctx, npsSummarySQL)
	if err != nil {
		return nil, fmt.Errorf("summarise nps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	res := &NPSResult{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			g            NPSGroup
			mean, median sql.NullFloat64
		)
		if err := rows.Scan(&g.Status, &mean, &median, &g.Count); err != nil {
			return nil, fmt.Errorf("scan nps summary: %w", err)
		}
		g.Mean = nullFloat(mean)
		g.Median = nullFloat(median)
		index[g.Status] = len(res.Groups)
		res.Groups = append(res.Groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nps summary: %w", err)
	}

	scoreRows, err := q.QueryContext(ctx, npsScoresSQL)
	if err != nil {
		return nil, fmt.Errorf("read nps scores: %w", err)
	}
	defer func() { _ = scoreRows.Close() }()

	for scoreRows.Next() {
		var status string
		var score float64
		if err := scoreRows.Scan(&status, &score); err != nil {
			return nil, fmt.Errorf("scan nps score: %w", err)
		}
		if i, ok := index[status]; ok {
			res.Groups[i].Scores = append(res.Groups[i].Scores, score)
		}
	}
	if err := scoreRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nps scores: %w", err)
	}

	return res, nil
}
