// Package export writes analysis results to a spreadsheet, one sheet per
// analysis.
package export

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mophones/creditviz/internal/analysis"
)

// Sheet names.
const (
	SheetNPS       = "NPS"
	SheetPortfolio = "Portfolio"
	SheetSegments  = "Segments"
	SheetRollRates = "Roll Rates"
)

// ErrNothingToExport is returned when no result was given.
var ErrNothingToExport = errors.New("no analysis results to export")

// sheet is one table of the workbook.
type sheet struct {
	name   string
	header []any
	rows   [][]any
}

// WriteXLSX writes results to path. Nil results are skipped; sheets appear
// in the order given.
func WriteXLSX(path string, results []analysis.Result) error {
	var sheets []sheet
	for _, r := range results {
		if r == nil {
			continue
		}
		s, err := toSheet(r)
		if err != nil {
			return err
		}
		sheets = append(sheets, s)
	}
	if len(sheets) == 0 {
		return ErrNothingToExport
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	defaultSheet := f.GetSheetList()[0]
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, s.name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s, headerStyle); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
		return fmt.Errorf("%s header: %w", s.name, err)
	}
	last, err := excelize.CoordinatesToCellName(len(s.header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", s.name, err)
	}

	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", s.name, i+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(s.header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(s.name, "A", lastCol, 18); err != nil {
		return err
	}
	return f.SetPanes(s.name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// cellValue leaves missing numbers empty.
func cellValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func toSheet(r analysis.Result) (sheet, error) {
	switch r := r.(type) {
	case *analysis.NPSResult:
		return npsSheet(r), nil
	case *analysis.PortfolioResult:
		return portfolioSheet(r), nil
	case *analysis.SegmentResult:
		return segmentSheet(r), nil
	case *analysis.RollRateResult:
		return rollRateSheet(r), nil
	default:
		return sheet{}, fmt.Errorf("unsupported result type %T", r)
	}
}

func npsSheet(r *analysis.NPSResult) sheet {
	s := sheet{name: SheetNPS, header: []any{"account_status", "mean", "median", "count"}}
	for _, g := range r.Groups {
		s.rows = append(s.rows, []any{g.Status, cellValue(g.Mean), cellValue(g.Median), g.Count})
	}
	return s
}

// portfolioSheet lays out one row per reporting date and one column per
// present metric.
func portfolioSheet(r *analysis.PortfolioResult) sheet {
	s := sheet{name: SheetPortfolio, header: []any{"reporting_date"}}

	var (
		dates  []time.Time
		byDate = make(map[time.Time]map[string]float64)
		cols   []string
	)
	for _, series := range r.Series {
		if !series.Present {
			continue
		}
		cols = append(cols, series.Metric)
		s.header = append(s.header, series.Metric)
		for _, p := range series.Points {
			if _, ok := byDate[p.Date]; !ok {
				byDate[p.Date] = make(map[string]float64)
				dates = append(dates, p.Date)
			}
			byDate[p.Date][series.Metric] = p.Value
		}
	}
	slices.SortFunc(dates, time.Time.Compare)

	for _, d := range dates {
		row := []any{d.Format("2006-01-02")}
		for _, c := range cols {
			if v, ok := byDate[d][c]; ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		s.rows = append(s.rows, row)
	}
	return s
}

func segmentSheet(r *analysis.SegmentResult) sheet {
	s := sheet{name: SheetSegments, header: []any{"dimension", "segment", "mean_default_rate"}}
	for _, b := range r.Breakdowns {
		for _, g := range b.Groups {
			s.rows = append(s.rows, []any{b.Dimension.Column, g.Key, cellValue(g.Mean)})
		}
	}
	return s
}

func rollRateSheet(r *analysis.RollRateResult) sheet {
	s := sheet{name: SheetRollRates, header: []any{"from_status"}}
	for _, to := range r.To {
		s.header = append(s.header, to)
	}
	for i, from := range r.From {
		row := []any{from}
		for _, v := range r.Rates[i] {
			row = append(row, cellValue(v))
		}
		s.rows = append(s.rows, row)
	}
	return s
}
