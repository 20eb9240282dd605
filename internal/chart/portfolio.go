package chart

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/mophones/creditviz/internal/analysis"
)

const dateFormat = "2006-01-02"

// drawPortfolio draws one line panel per KPI on a 2x2 grid. A KPI that is
// absent from the dataset leaves an empty panel.
func drawPortfolio(fig *figure, r *analysis.PortfolioResult) error {
	plots := [][]*plot.Plot{make([]*plot.Plot, 2), make([]*plot.Plot, 2)}

	for i, s := range r.Series {
		if i >= 4 {
			break
		}
		p := newPlot(humanize(s.Metric))
		p.X.Tick.Marker = plot.TimeTicks{Format: dateFormat}
		rotateXLabels(p)
		p.Add(plotter.NewGrid())

		if len(s.Points) > 0 {
			xys := make(plotter.XYs, len(s.Points))
			for j, pt := range s.Points {
				xys[j].X = float64(pt.Date.Unix())
				xys[j].Y = pt.Value
			}
			line, points, err := plotter.NewLinePoints(xys)
			if err != nil {
				return fmt.Errorf("%s series: %w", s.Metric, err)
			}
			line.Color = lineColor
			line.Width = vg.Points(1.5)
			points.Shape = draw.CircleGlyph{}
			points.Color = lineColor
			points.Radius = vg.Points(3)
			p.Add(line, points)
		}

		plots[i/2][i%2] = p
	}

	body := fig.suptitle(analysis.PortfolioTrends{}.Title())
	fig.grid(body, plots)
	return nil
}
