// Package plot renders the ablation, speedup and breakdown figures. The image format
// follows the output file's extension (png, svg, pdf, ...).
package plot

import (
	"fmt"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/sanbench/internal/analyzer"
)

var (
	barColor   = color.RGBA{74, 144, 226, 255}
	edgeColor  = color.RGBA{44, 62, 80, 255}
	refColor   = color.RGBA{231, 76, 60, 255}
	pointColor = color.RGBA{74, 144, 226, 153}
)

var dashes = []vg.Length{vg.Points(6), vg.Points(4)}

var (
	stageColors = map[string]color.Color{
		analyzer.StageAST:       color.RGBA{231, 111, 81, 255},
		analyzer.StageTTIR:      color.RGBA{42, 157, 143, 255},
		analyzer.StageTTGIR:     color.RGBA{2, 120, 167, 255},
		analyzer.StageLLIR:      color.RGBA{106, 191, 105, 255},
		analyzer.StagePTX:       color.RGBA{244, 211, 94, 255},
		analyzer.StageCUBIN:     color.RGBA{192, 132, 252, 255},
		analyzer.StageExecution: color.RGBA{255, 149, 102, 255},
	}
	othersColor = color.RGBA{189, 189, 189, 255}
	z3Color     = color.RGBA{124, 192, 255, 255}
)

// Bar is one labelled bar.
type Bar struct {
	Label string
	Value float64
}

// AblationBars draws total time per ablation config. Every bar after the
// first is labelled with its speedup over the first, and a dashed line marks
// the first bar's height.
func AblationBars(bars []Bar, path string) error {
	if len(bars) == 0 {
		return errors.New("no bars to plot")
	}

	p := plot.New()
	p.Title.Text = "Sanitizer Cache Ablation"
	p.Y.Label.Text = "Kernel time (ms)"

	values := make(plotter.Values, len(bars))
	ticks := make([]plot.Tick, len(bars))
	for i, b := range bars {
		values[i] = b.Value
		ticks[i] = plot.Tick{Value: float64(i), Label: b.Label}
	}

	chart, err := plotter.NewBarChart(values, vg.Points(45))
	if err != nil {
		return errors.Wrap(err, "bar chart")
	}
	chart.Color = barColor
	chart.LineStyle.Color = edgeColor
	chart.LineStyle.Width = vg.Points(1.5)
	p.Add(chart)

	base := bars[0].Value
	xys := make(plotter.XYs, len(bars))
	labels := make([]string, len(bars))
	for i, b := range bars {
		xys[i].X = float64(i)
		xys[i].Y = b.Value
		labels[i] = fmt.Sprintf("%.2f", b.Value)
		if i > 0 {
			if s, _, ok := analyzer.Speedup(base, b.Value); ok {
				labels[i] += fmt.Sprintf(" (%.1fx)", s)
			}
		}
	}
	text, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return errors.Wrap(err, "bar labels")
	}
	for i := range text.TextStyle {
		text.TextStyle[i].XAlign = draw.XCenter
		text.TextStyle[i].YAlign = draw.YBottom
	}
	p.Add(text)

	ref, err := plotter.NewLine(plotter.XYs{{X: -0.5, Y: base}, {X: float64(len(bars)) - 0.5, Y: base}})
	if err != nil {
		return errors.Wrap(err, "baseline line")
	}
	ref.Color = refColor
	ref.Dashes = dashes
	p.Add(ref)

	p.X.Min = -0.5
	p.X.Max = float64(len(bars)) - 0.5
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Min = 0
	p.Y.Max = maxValue(values) * 1.15
	p.Add(plotter.NewGrid())

	return save(p, 8*vg.Inch, 5*vg.Inch, path)
}

// SpeedupScatter plots compute-sanitizer time on a log axis against the
// compute/triton speedup. Point size grows with the baseline time and a
// dashed line marks a speedup of one.
func SpeedupScatter(points []analyzer.ScatterPoint, path string) error {
	var xys plotter.XYs
	var baselines []float64
	for _, pt := range points {
		if pt.Compute <= 0 || pt.Triton <= 0 {
			continue
		}
		xys = append(xys, plotter.XY{X: pt.Compute, Y: pt.Speedup()})
		baselines = append(baselines, pt.Baseline)
	}
	if len(xys) == 0 {
		return errors.New("no points to plot")
	}

	p := plot.New()
	p.Title.Text = "Compute-Sanitizer vs Triton-Sanitizer"
	p.X.Label.Text = "Compute-Sanitizer Time (ms, log)"
	p.Y.Label.Text = "Speedup (x)"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}

	sc, err := plotter.NewScatter(xys)
	if err != nil {
		return errors.Wrap(err, "scatter")
	}
	lo, hi := minValue(baselines), maxValue(baselines)
	sc.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		r := vg.Points(2)
		if hi > lo {
			r += vg.Points(6 * (baselines[i] - lo) / (hi - lo))
		}
		return draw.GlyphStyle{Color: pointColor, Radius: r, Shape: draw.CircleGlyph{}}
	}
	p.Add(sc)

	xmin, xmax, _, _ := plotter.XYRange(xys)
	one, err := plotter.NewLine(plotter.XYs{{X: xmin, Y: 1}, {X: xmax, Y: 1}})
	if err != nil {
		return errors.Wrap(err, "reference line")
	}
	one.Color = refColor
	one.Dashes = dashes
	p.Add(one)
	p.Add(plotter.NewGrid())

	return save(p, 10*vg.Inch, 6*vg.Inch, path)
}

// BreakdownBars draws one pair of horizontal bars per case, as percentages
// of the compute-sanitizer end-to-end time. The upper bar stacks the compile
// stages, execution and unaccounted time; the lower bar shows the
// triton-sanitizer run against the same scale. The first case is drawn on top.
func BreakdownBars(cases []analyzer.Breakdown, path string) error {
	if len(cases) == 0 {
		return errors.New("no breakdowns to plot")
	}

	p := plot.New()
	p.Title.Text = "Sanitizer Time Breakdown"
	p.X.Label.Text = "Percentage of End-to-End Time (%)"
	p.Legend.Top = true

	n := len(cases)
	width := vg.Points(14)
	row := func(i int) int { return n - 1 - i }

	names := make([]string, n)
	for i, c := range cases {
		names[row(i)] = c.Label()
	}

	var below *plotter.BarChart
	for _, stage := range append(append([]string(nil), analyzer.Stages...), "Others") {
		values := make(plotter.Values, n)
		for i, c := range cases {
			v := c.Others()
			if stage != "Others" {
				v = c.Stages[stage]
			}
			values[row(i)] = c.Percent(v)
		}
		chart, err := stackedBar(values, width, width/2, below)
		if err != nil {
			return errors.Wrapf(err, "%s bars", stage)
		}
		chart.Color = othersColor
		if c, ok := stageColors[stage]; ok {
			chart.Color = c
		}
		p.Add(chart)
		p.Legend.Add(stage, chart)
		below = chart
	}

	z3 := make(plotter.Values, n)
	rest := make(plotter.Values, n)
	var xys plotter.XYs
	var labels []string
	for i, c := range cases {
		y := float64(row(i))
		xys = append(xys, plotter.XY{X: 101, Y: y + 0.2})
		labels = append(labels, fmt.Sprintf("CS: %.1fs", c.EndToEnd()))
		if c.TritonSanitizer <= 0 {
			continue
		}
		total := c.Percent(c.TritonSanitizer)
		z3[row(i)] = math.Min(total, c.Percent(c.Z3))
		rest[row(i)] = total - z3[row(i)]
		xys = append(xys, plotter.XY{X: 101, Y: y - 0.2})
		labels = append(labels, fmt.Sprintf("TS: %.1fs", c.TritonSanitizer))
	}
	ts, err := stackedBar(z3, width, -width/2, nil)
	if err != nil {
		return errors.Wrap(err, "triton-sanitizer bars")
	}
	ts.Color = z3Color
	tsRest, err := stackedBar(rest, width, -width/2, ts)
	if err != nil {
		return errors.Wrap(err, "triton-sanitizer bars")
	}
	tsRest.Color = othersColor
	p.Add(ts, tsRest)
	p.Legend.Add("Triton-Sanitizer", ts)

	text, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return errors.Wrap(err, "totals")
	}
	for i := range text.TextStyle {
		text.TextStyle[i].YAlign = draw.YCenter
	}
	p.Add(text)

	p.NominalY(names...)
	p.X.Min = 0
	p.X.Max = 125
	p.Add(plotter.NewGrid())

	return save(p, 12*vg.Inch, vg.Length(n)*vg.Inch+2*vg.Inch, path)
}

func stackedBar(values plotter.Values, width, offset vg.Length, on *plotter.BarChart) (*plotter.BarChart, error) {
	chart, err := plotter.NewBarChart(values, width)
	if err != nil {
		return nil, err
	}
	chart.Horizontal = true
	chart.Offset = offset
	chart.LineStyle.Color = edgeColor
	chart.LineStyle.Width = vg.Points(1)
	if on != nil {
		chart.StackOn(on)
	}
	return chart, nil
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := p.Save(w, h, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

func maxValue(vs []float64) float64 {
	m := math.Inf(-1)
	for _, v := range vs {
		m = math.Max(m, v)
	}
	return m
}

func minValue(vs []float64) float64 {
	m := math.Inf(1)
	for _, v := range vs {
		m = math.Min(m, v)
	}
	return m
}
