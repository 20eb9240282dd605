package chart

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/mophones/creditviz/internal/analysis"
)

// drawSegments draws the mean default rate per value of each segment
// dimension in a single row of bar charts.
func drawSegments(fig *figure, r *analysis.SegmentResult) error {
	if len(r.Breakdowns) == 0 {
		return ErrNothingToDraw
	}

	row := make([]*plot.Plot, len(r.Breakdowns))
	for i, b := range r.Breakdowns {
		p := newPlot("Default Rate by " + b.Dimension.Label)
		p.X.Label.Text = b.Dimension.Label
		p.Y.Label.Text = "Default Rate (%)"
		rotateXLabels(p)
		p.Add(plotter.NewGrid())

		if len(b.Groups) > 0 {
			keys := make([]string, len(b.Groups))
			means := make(plotter.Values, len(b.Groups))
			for j, g := range b.Groups {
				keys[j] = g.Key
				means[j] = finite(g.Mean)
			}
			bars, err := plotter.NewBarChart(means, vg.Points(24))
			if err != nil {
				return fmt.Errorf("%s bars: %w", b.Dimension.Column, err)
			}
			bars.Color = barColor
			bars.LineStyle.Width = 0
			p.Add(bars)
			p.NominalX(keys...)
		}

		row[i] = p
	}

	fig.grid(fig.dc, [][]*plot.Plot{row})
	return nil
}
