package histogram

import (
	"image/color"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Chart size.
const (
	chartWidth  = 14 * vg.Inch
	chartHeight = 8 * vg.Inch
)

// Font sizes of histogram and report charts.
const (
	histogramFontSize = 14
	reportFontSize    = 22
)

// logFloor is the bottom of logarithmic charts.
const logFloor = 0.9

// BarOptions configure a bar chart.
type BarOptions struct {
	Title        string
	Labels       []string // defaults to bucket indices
	Log          bool     // logarithmic y axis starting at 0.9
	RotateLabels bool
	FontSize     vg.Length
}

// BarChart draws values as adjacent bars with the y axis ending 10% above the
// largest value.
func BarChart(values []float64, opts BarOptions) (*plot.Plot, error) {
	if len(values) == 0 {
		return nil, errors.New("bar chart needs at least one value")
	}
	labels := opts.Labels
	if labels == nil {
		labels = make([]string, len(values))
		for i := range labels {
			labels[i] = strconv.Itoa(i)
		}
	}
	if len(labels) != len(values) {
		return nil, errors.Errorf("%d labels for %d values", len(labels), len(values))
	}

	p := plot.New()
	p.Title.Text = opts.Title
	setFontSize(p, opts.FontSize)

	width := vg.Length(12.5/float64(len(values))) * vg.Inch
	heights := plotter.Values(append([]float64(nil), values...))
	var base *plotter.BarChart
	if opts.Log {
		// Log axes cannot show a bar starting at zero, so bars stand on an
		// invisible base of height logFloor.
		floor := make(plotter.Values, len(values))
		for i, v := range values {
			floor[i] = logFloor
			heights[i] = math.Max(v, logFloor) - logFloor
		}
		var err error
		if base, err = plotter.NewBarChart(floor, width); err != nil {
			return nil, errors.Wrap(err, "creating bar chart")
		}
	}
	bars, err := plotter.NewBarChart(heights, width)
	if err != nil {
		return nil, errors.Wrap(err, "creating bar chart")
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Color = color.White
	if base != nil {
		bars.StackOn(base)
	}
	p.Add(bars)
	p.NominalX(labels...)

	maxValue := floats.Max(values)
	p.X.Min = -0.5
	p.X.Max = float64(len(values)) - 0.5
	p.Y.Min = 0
	p.Y.Max = maxValue * 1.1
	if opts.Log {
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{}
		p.Y.Min = logFloor
		p.Y.Max = math.Max(maxValue*1.1, 1)
	}
	if p.Y.Max <= p.Y.Min {
		p.Y.Max = p.Y.Min + 1
	}
	if opts.RotateLabels {
		p.X.Tick.Label.Rotation = math.Pi / 2
		p.X.Tick.Label.XAlign = draw.XRight
		p.X.Tick.Label.YAlign = draw.YCenter
	}
	return p, nil
}

// LossChart draws the training and validation loss over iterations on a
// logarithmic axis. Non-positive losses are skipped.
func LossChart(title string, train, validate []LossPoint) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "loss"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{}
	p.Legend.Top = true
	setFontSize(p, histogramFontSize)
	p.Add(plotter.NewGrid())

	var lines []any
	for _, series := range []struct {
		name   string
		points []LossPoint
	}{{"train", train}, {"validate", validate}} {
		xys := lossXYs(series.points)
		if len(xys) == 0 {
			continue
		}
		lines = append(lines, series.name, xys)
	}
	if len(lines) == 0 {
		return nil, errors.New("no positive loss values to plot")
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return nil, errors.Wrap(err, "adding loss lines")
	}
	return p, nil
}

func lossXYs(points []LossPoint) plotter.XYs {
	xys := make(plotter.XYs, 0, len(points))
	for _, pt := range points {
		if pt.Loss > 0 && !math.IsInf(pt.Loss, 0) && !math.IsNaN(pt.Loss) {
			xys = append(xys, plotter.XY{X: float64(pt.N), Y: pt.Loss})
		}
	}
	return xys
}

func setFontSize(p *plot.Plot, size vg.Length) {
	if size <= 0 {
		return
	}
	p.Title.TextStyle.Font.Size = size
	for _, axis := range []*plot.Axis{&p.X, &p.Y} {
		axis.Label.TextStyle.Font.Size = size
		axis.Tick.Label.Font.Size = size * 0.8
	}
}

// Save writes p as a 14x8 inch image; the format follows the extension.
func Save(p *plot.Plot, path string) error {
	return errors.Wrapf(p.Save(chartWidth, chartHeight, path), "saving %s", path)
}
