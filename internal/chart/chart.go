// Package chart renders analysis results as PNG figures.
//
// Each analysis has one figure with a fixed file name and physical size.
// Figures are composed from gonum plots tiled onto a single raster canvas
// and written at the configured resolution.
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/mophones/creditviz/internal/analysis"
)

// DefaultDPI is the resolution used when none is configured.
const DefaultDPI = 300

// Chart file names.
const (
	FileNPS       = "nps_analysis.png"
	FilePortfolio = "portfolio_trends.png"
	FileSegments  = "segment_analysis.png"
	FileRollRates = "roll_rates_heatmap.png"
)

// Layout describes the figure produced for one analysis.
type Layout struct {
	Analysis string
	File     string
	Width    vg.Length
	Height   vg.Length
}

// Layouts lists the figures in analysis execution order.
var Layouts = []Layout{
	{Analysis: analysis.NameNPS, File: FileNPS, Width: 12 * vg.Inch, Height: 6 * vg.Inch},
	{Analysis: analysis.NamePortfolio, File: FilePortfolio, Width: 15 * vg.Inch, Height: 10 * vg.Inch},
	{Analysis: analysis.NameSegments, File: FileSegments, Width: 15 * vg.Inch, Height: 6 * vg.Inch},
	{Analysis: analysis.NameRollRates, File: FileRollRates, Width: 10 * vg.Inch, Height: 8 * vg.Inch},
}

// LayoutFor returns the figure layout for an analysis name.
func LayoutFor(name string) (Layout, bool) {
	for _, s := range Layouts {
		if s.Analysis == name {
			return s, true
		}
	}
	return Layout{}, false
}

// Files returns every chart file name in order.
func Files() []string {
	out := make([]string, len(Layouts))
	for i, s := range Layouts {
		out[i] = s.File
	}
	return out
}

// ErrNothingToDraw is returned when a result holds no drawable data.
var ErrNothingToDraw = errors.New("nothing to draw")

// Options controls rendering.
type Options struct {
	DPI int
}

func (o Options) dpi() int {
	if o.DPI <= 0 {
		return DefaultDPI
	}
	return o.DPI
}

// Render draws res into dir and returns the written path.
func Render(res analysis.Result, dir string, opts Options) (string, error) {
	layout, ok := LayoutFor(res.AnalysisName())
	if !ok {
		return "", fmt.Errorf("no chart for analysis %q", res.AnalysisName())
	}

	fig := newFigure(layout.Width, layout.Height, opts.dpi())

	var err error
	switch r := res.(type) {
	case *analysis.NPSResult:
		err = drawNPS(fig, r)
	case *analysis.PortfolioResult:
		err = drawPortfolio(fig, r)
	case *analysis.SegmentResult:
		err = drawSegments(fig, r)
	case *analysis.RollRateResult:
		err = drawRollRates(fig, r)
	default:
		err = fmt.Errorf("unsupported result type %T", res)
	}
	if err != nil {
		return "", fmt.Errorf("draw %s: %w", layout.File, err)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create charts dir: %w", err)
	}
	path := filepath.Join(dir, layout.File)
	if err := fig.save(path); err != nil {
		return "", err
	}
	return path, nil
}

// figure is a raster canvas holding one or more plots.
type figure struct {
	img *vgimg.Canvas
	dc  draw.Canvas
}

func newFigure(w, h vg.Length, dpi int) *figure {
	img := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(dpi))
	return &figure{img: img, dc: draw.New(img)}
}

// suptitle draws a figure title and returns the canvas below it.
func (f *figure) suptitle(title string) draw.Canvas {
	sty := text.Style{
		Color:   color.Black,
		Font:    font.From(plot.DefaultFont, 16),
		XAlign:  draw.XCenter,
		YAlign:  draw.YTop,
		Handler: plot.DefaultTextHandler,
	}
	pad := vg.Points(8)
	top := vg.Point{X: f.dc.Center().X, Y: f.dc.Max.Y - pad}
	f.dc.FillText(sty, top, title)
	return draw.Crop(f.dc, 0, 0, 0, -(sty.Height(title) + 2*pad))
}

// grid tiles plots onto c, row major.
func (f *figure) grid(c draw.Canvas, plots [][]*plot.Plot) {
	tiles := draw.Tiles{
		Rows:      len(plots),
		Cols:      len(plots[0]),
		PadX:      vg.Millimeter * 8,
		PadY:      vg.Millimeter * 8,
		PadTop:    vg.Millimeter * 3,
		PadBottom: vg.Millimeter * 3,
		PadLeft:   vg.Millimeter * 3,
		PadRight:  vg.Millimeter * 3,
	}
	canvases := plot.Align(plots, tiles, c)
	for j := range plots {
		for i, p := range plots[j] {
			if p != nil {
				p.Draw(canvases[j][i])
			}
		}
	}
}

func (f *figure) save(path string) error {
	out, err := os.Create(path) //nolint:gosec // path is built from the charts dir and a fixed name
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: f.img}).WriteTo(out); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return out.Close()
}

// newPlot returns a plot with the shared styling.
func newPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(13)
	p.Title.Padding = vg.Points(6)
	return p
}

// rotateXLabels tilts tick labels the way long category names need.
func rotateXLabels(p *plot.Plot) {
	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
}

var titleCaser = cases.Title(language.English)

// humanize turns a column name into a panel title: "total_accounts" becomes
// "Total Accounts".
func humanize(column string) string {
	out := []rune(column)
	for i, r := range out {
		if r == '_' {
			out[i] = ' '
		}
	}
	return titleCaser.String(string(out))
}

// finite replaces NaN and infinities with zero so bars can be drawn.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

var (
	barColor  = color.RGBA{R: 0x4c, G: 0x72, B: 0xb0, A: 0xff}
	lineColor = color.RGBA{R: 0xdd, G: 0x84, B: 0x52, A: 0xff}
)

// statusColors cycles through a categorical palette for box plots.
var statusColors = []color.Color{
	color.RGBA{R: 0xf7, G: 0x7e, B: 0x75, A: 0xff},
	color.RGBA{R: 0x7c, G: 0xae, B: 0x00, A: 0xff},
	color.RGBA{R: 0x00, G: 0xbf, B: 0xc4, A: 0xff},
	color.RGBA{R: 0xc7, G: 0x7c, B: 0xff, A: 0xff},
	color.RGBA{R: 0xe6, G: 0xa0, B: 0x00, A: 0xff},
}
