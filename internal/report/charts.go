package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/scenario.report/internal/metrics"
	"github.com/banshee-data/scenario.report/internal/units"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// ChartOptions controls the rendered HTML charts.
type ChartOptions struct {
	Title      string
	SpeedUnits string // mps, mph, kmph or kph; empty means mps
}

func (o ChartOptions) title(def string) string {
	if o.Title != "" {
		return o.Title
	}
	return def
}

func (o ChartOptions) speedUnits() string {
	if units.IsValid(o.SpeedUnits) {
		return o.SpeedUnits
	}
	return units.MPS
}

// DeviationChart renders an interactive line chart of per-sample
// position deviation, one series per object, as a standalone HTML
// document.
func DeviationChart(results []*metrics.Result, opt ChartOptions, w io.Writer) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to chart")
	}

	maxSamples := 0
	for _, res := range results {
		if len(res.PosDev) > maxSamples {
			maxSamples = len(res.PosDev)
		}
	}
	x := make([]string, maxSamples)
	for i := range x {
		x[i] = strconv.Itoa(i)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Position Deviation", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: opt.title("Position Deviation"), Subtitle: fmt.Sprintf("objects=%d tolerance=%gm", len(results), results[0].Tolerances.Position)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "sample"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "deviation (m)"}),
	)

	line.SetXAxis(x)
	for _, res := range results {
		series := make([]opts.LineData, 0, len(res.PosDev))
		for _, d := range res.PosDev {
			series = append(series, opts.LineData{Value: d})
		}
		line.AddSeries(fmt.Sprintf("object %d", res.ObjectID), series)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// TrajectoryScatter renders the reference and candidate positions of
// all pairs as a square XY scatter, reference grey and candidate red,
// as a standalone HTML document.
func TrajectoryScatter(pairs []*metrics.AlignedPair, opt ChartOptions, w io.Writer) error {
	if len(pairs) == 0 {
		return fmt.Errorf("no pairs to chart")
	}

	refPts := make([]opts.ScatterData, 0)
	candPts := make([]opts.ScatterData, 0)
	maxAbs := 0.0
	track := func(x, y float64) {
		if math.Abs(x) > maxAbs {
			maxAbs = math.Abs(x)
		}
		if math.Abs(y) > maxAbs {
			maxAbs = math.Abs(y)
		}
	}
	for _, pair := range pairs {
		for _, s := range pair.Ref.Samples {
			track(s.Position.X, s.Position.Y)
			refPts = append(refPts, opts.ScatterData{Value: []interface{}{s.Position.X, s.Position.Y}})
		}
		for _, s := range pair.Cand.Samples {
			track(s.Position.X, s.Position.Y)
			candPts = append(candPts, opts.ScatterData{Value: []interface{}{s.Position.X, s.Position.Y}})
		}
	}

	// Add a small padding so points at the edges are visible
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	speedLabel := fmt.Sprintf("pairs=%d mean speed=%.1f %s",
		len(pairs), units.ConvertSpeed(meanSpeedMPS(pairs), opt.speedUnits()), opt.speedUnits())

	// Force a square plot by using equal width/height and symmetric axis ranges
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Trajectory Comparison", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: opt.title("Trajectory Comparison"), Subtitle: speedLabel}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("reference", refPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	scatter.AddSeries("candidate", candPts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#ff5252"}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
