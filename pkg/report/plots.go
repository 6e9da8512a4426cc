// Package report renders evaluation results as PNG figures and writes the
// JSON and CSV artifacts that accompany them.
package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/align"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/backtest"
	"github.com/ogulcanaydogan/perf-prediction-eval/pkg/metricstore"
)

var (
	measuredColor  = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	predictedColor = color.RGBA{R: 200, G: 30, B: 30, A: 255}

	// File 1 / file 2 colors for each compared column, cycled.
	comparisonColors = [][2]color.RGBA{
		{{R: 20, G: 80, B: 200, A: 255}, {R: 200, G: 30, B: 30, A: 255}},
		{{R: 255, G: 140, B: 0, A: 255}, {R: 128, G: 0, B: 128, A: 255}},
		{{R: 0, G: 128, B: 0, A: 255}, {R: 139, G: 69, B: 19, A: 255}},
	}
	trendColors = []color.RGBA{
		{R: 20, G: 80, B: 200, A: 255},
		{R: 255, G: 140, B: 0, A: 255},
		{R: 0, G: 128, B: 0, A: 255},
	}
)

const (
	panelWidth  = 10 * vg.Inch
	panelHeight = 6 * vg.Inch
	boxWidth    = 6 * vg.Inch
)

// WriteAlignedScatter plots measured and predicted values against the
// function call index, one stacked panel per metric.
func WriteAlignedScatter(path string, res align.Result) error {
	panels := make([]*plot.Plot, 0, len(res.Metrics))
	for i, metric := range res.Metrics {
		p := newPanel(fmt.Sprintf("Measured vs. Predicted %s", metric), "", metric)
		if i == len(res.Metrics)-1 {
			p.X.Label.Text = "Function call"
		}
		series := res.Aligned[metric]
		if err := addScatter(p, "Measured", series.Measured(), measuredColor); err != nil {
			return err
		}
		if err := addScatter(p, "Predicted", series.Predicted(), predictedColor); err != nil {
			return err
		}
		panels = append(panels, p)
	}
	return saveColumn(path, panels)
}

// WriteErrorBoxes draws one box per metric in a single row. Outliers are
// hidden and the value axis is clipped to the whiskers.
func WriteErrorBoxes(path string, metrics []string, errs map[string][]float64) error {
	panels := make([]*plot.Plot, 0, len(metrics))
	for _, metric := range metrics {
		p := newPanel(fmt.Sprintf("Absolute Error Distribution for %s", metric), "", "Absolute Error")
		p.X.Tick.Marker = plot.ConstantTicks{}
		values := errs[metric]
		if len(values) == 0 {
			p.Title.Text += " (no data)"
			panels = append(panels, p)
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(40), 0, plotter.Values(values))
		if err != nil {
			return fmt.Errorf("box plot %s: %w", metric, err)
		}
		box.GlyphStyle.Radius = 0
		p.Add(box)
		lo, hi := padRange(box.AdjLow, box.AdjHigh)
		p.Y.Min, p.Y.Max = lo, hi
		panels = append(panels, p)
	}
	return saveGrid(path, [][]*plot.Plot{panels}, boxWidth*vg.Length(max(len(panels), 1)), boxWidth)
}

// WriteBacktestScatter plots held-out truth against predictions for each
// event of a backtest report.
func WriteBacktestScatter(path string, rep backtest.Report) error {
	panels := make([]*plot.Plot, 0, len(rep.Events))
	for _, o := range rep.Events {
		p := newPanel(fmt.Sprintf("Measured vs. Predicted %s", o.Event), "Test Sample Index", o.Event)
		if err := addScatter(p, "Measured", o.Truth, measuredColor); err != nil {
			return err
		}
		if err := addScatter(p, "Predicted", o.Predicted, predictedColor); err != nil {
			return err
		}
		panels = append(panels, p)
	}
	return saveColumn(path, panels)
}

// WriteComparison scatters each metric column of two frames against the
// row index.
func WriteComparison(path string, a, b metricstore.Frame, metrics []string) error {
	panels := make([]*plot.Plot, 0, len(metrics))
	for i, metric := range metrics {
		colors := comparisonColors[i%len(comparisonColors)]
		p := newPanel(fmt.Sprintf("Column %s Comparison", metric), "Time", "Value")
		if err := addScatter(p, metric+" from File 1", a.Column(metric), colors[0]); err != nil {
			return err
		}
		if err := addScatter(p, metric+" from File 2", b.Column(metric), colors[1]); err != nil {
			return err
		}
		panels = append(panels, p)
	}
	return saveColumn(path, panels)
}

// WriteTrends draws each metric of frame as a line over the row index.
func WriteTrends(path string, frame metricstore.Frame, metrics []string) error {
	panels := make([]*plot.Plot, 0, len(metrics))
	for i, metric := range metrics {
		p := newPanel(fmt.Sprintf("Temporal Trend of %s", metric), "Time", "Value")
		values := frame.Column(metric)
		if len(values) > 0 {
			line, err := plotter.NewLine(indexXYs(values))
			if err != nil {
				return fmt.Errorf("trend %s: %w", metric, err)
			}
			line.Color = trendColors[i%len(trendColors)]
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(metric, line)
		}
		panels = append(panels, p)
	}
	return saveColumn(path, panels)
}

// ComparisonFileName returns scatter_plot_<NN>.png for a non-negative
// numeric label, zero padding values below ten.
func ComparisonFileName(label string) (string, error) {
	n, err := strconv.Atoi(label)
	if err != nil || n < 0 {
		return "", fmt.Errorf("label %q must be a non-negative integer", label)
	}
	return fmt.Sprintf("scatter_plot_%02d.png", n), nil
}

func newPanel(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.Y.Tick.Marker = sciTicks{}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return p
}

func addScatter(p *plot.Plot, label string, values []float64, c color.Color) error {
	if len(values) == 0 {
		return nil
	}
	s, err := plotter.NewScatter(indexXYs(values))
	if err != nil {
		return fmt.Errorf("scatter %s: %w", label, err)
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)
	p.Legend.Add(label, s)
	return nil
}

func indexXYs(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	return xys
}

func padRange(lo, hi float64) (float64, float64) {
	span := hi - lo
	if span <= 0 {
		span = math.Max(math.Abs(hi), 1)
	}
	return lo - 0.05*span, hi + 0.05*span
}

// sciTicks labels the default tick positions in scientific notation.
type sciTicks struct{}

func (sciTicks) Ticks(min, max float64) []plot.Tick {
	ticks := plot.DefaultTicks{}.Ticks(min, max)
	for i := range ticks {
		if ticks[i].Label != "" {
			ticks[i].Label = strconv.FormatFloat(ticks[i].Value, 'e', 2, 64)
		}
	}
	return ticks
}

func saveColumn(path string, panels []*plot.Plot) error {
	grid := make([][]*plot.Plot, len(panels))
	for i, p := range panels {
		grid[i] = []*plot.Plot{p}
	}
	return saveGrid(path, grid, panelWidth, panelHeight*vg.Length(max(len(panels), 1)))
}

// saveGrid aligns the panels on one canvas and writes it as PNG.
func saveGrid(path string, grid [][]*plot.Plot, width, height vg.Length) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	img := vgimg.New(width, height)
	dc := draw.New(img)

	if len(grid) > 0 && len(grid[0]) > 0 {
		tiles := draw.Tiles{
			Rows:      len(grid),
			Cols:      len(grid[0]),
			PadX:      vg.Millimeter * 4,
			PadY:      vg.Millimeter * 4,
			PadTop:    vg.Millimeter * 2,
			PadBottom: vg.Millimeter * 2,
			PadLeft:   vg.Millimeter * 2,
			PadRight:  vg.Millimeter * 2,
		}
		canvases := plot.Align(grid, tiles, dc)
		for i := range grid {
			for j, p := range grid[i] {
				if p != nil {
					p.Draw(canvases[i][j])
				}
			}
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(file); err != nil {
		return fmt.Errorf("write png %s: %w", path, err)
	}
	return nil
}
