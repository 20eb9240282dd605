package chart

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/mophones/creditviz/internal/analysis"
)

// drawNPS draws the score distribution and the average score per status
// side by side.
func drawNPS(fig *figure, r *analysis.NPSResult) error {
	if len(r.Groups) == 0 {
		return ErrNothingToDraw
	}
	statuses := r.Statuses()

	dist := newPlot("NPS Score Distribution by Account Status")
	dist.X.Label.Text = "Account Status"
	dist.Y.Label.Text = "NPS Score"
	for i, g := range r.Groups {
		if len(g.Scores) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(30), float64(i), plotter.Values(g.Scores))
		if err != nil {
			return fmt.Errorf("box plot for %s: %w", g.Status, err)
		}
		box.FillColor = statusColors[i%len(statusColors)]
		dist.Add(box)
	}
	dist.NominalX(statuses...)
	rotateXLabels(dist)

	means := make(plotter.Values, len(r.Groups))
	for i, g := range r.Groups {
		means[i] = finite(g.Mean)
	}
	avg := newPlot("Average NPS by Account Status")
	avg.X.Label.Text = "Account Status"
	avg.Y.Label.Text = "Average NPS Score"
	bars, err := plotter.NewBarChart(means, vg.Points(30))
	if err != nil {
		return fmt.Errorf("average nps bars: %w", err)
	}
	bars.Color = barColor
	bars.LineStyle.Width = 0
	avg.Add(bars, plotter.NewGrid())
	avg.NominalX(statuses...)
	rotateXLabels(avg)

	fig.grid(fig.dc, [][]*plot.Plot{{dist, avg}})
	return nil
}
