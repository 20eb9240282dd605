package chart

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/brewer"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/mophones/creditviz/internal/analysis"
)

// rateGrid adapts a roll rate pivot to plotter.GridXYZ. The first "from"
// status is drawn on the top row.
type rateGrid struct {
	r *analysis.RollRateResult
}

func (g rateGrid) Dims() (c, r int) { return len(g.r.To), len(g.r.From) }

func (g rateGrid) Z(c, r int) float64 {
	return g.r.Rates[len(g.r.From)-1-r][c]
}

func (g rateGrid) X(c int) float64 { return float64(c) }
func (g rateGrid) Y(r int) float64 { return float64(r) }

// drawRollRates draws the roll rate pivot as an annotated heatmap.
func drawRollRates(fig *figure, r *analysis.RollRateResult) error {
	lo, hi, ok := r.Range()
	if !ok || len(r.From) == 0 || len(r.To) == 0 {
		return ErrNothingToDraw
	}

	pal, err := brewer.GetPalette(brewer.TypeAny, "YlOrRd", 9)
	if err != nil {
		return fmt.Errorf("palette: %w", err)
	}

	grid := rateGrid{r: r}
	h := plotter.NewHeatMap(grid, pal)
	h.Min, h.Max = lo, hi
	if h.Min == h.Max {
		// a zero-width range maps every cell outside the palette
		h.Max = h.Min + 1
	}
	h.NaN = color.White

	p := newPlot(analysis.RollRateMatrix{}.Title())
	p.X.Label.Text = "To Status"
	p.Y.Label.Text = "From Status"
	p.Add(h)

	labels, err := cellLabels(grid, h)
	if err != nil {
		return err
	}
	if labels != nil {
		p.Add(labels)
	}

	p.NominalX(r.To...)
	rows := make([]string, len(r.From))
	for i, s := range r.From {
		rows[len(r.From)-1-i] = s
	}
	p.NominalY(rows...)

	fig.grid(fig.dc, [][]*plot.Plot{{p}})
	return nil
}

// cellLabels annotates every observed cell with its rate as a percentage.
// Text on the darker half of the palette is drawn in white.
func cellLabels(g rateGrid, h *plotter.HeatMap) (*plotter.Labels, error) {
	cols, rows := g.Dims()
	var (
		xys    plotter.XYs
		texts  []string
		styles []text.Style
	)
	mid := h.Min + (h.Max-h.Min)/2
	for c := range cols {
		for r := range rows {
			v := g.Z(c, r)
			if math.IsNaN(v) {
				continue
			}
			xys = append(xys, plotter.XY{X: g.X(c), Y: g.Y(r)})
			texts = append(texts, FormatPercent(v))

			sty := text.Style{
				Color:   color.Black,
				Font:    plot.DefaultFont,
				XAlign:  draw.XCenter,
				YAlign:  draw.YCenter,
				Handler: plot.DefaultTextHandler,
			}
			sty.Font.Size = vg.Points(11)
			if v > mid {
				sty.Color = color.White
			}
			styles = append(styles, sty)
		}
	}
	if len(xys) == 0 {
		return nil, nil
	}

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
	if err != nil {
		return nil, fmt.Errorf("cell labels: %w", err)
	}
	labels.TextStyle = styles
	return labels, nil
}

// FormatPercent renders a fraction as a percentage with one decimal.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
