package report

import (
	"fmt"
	"image/color"
	"io"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/scenario.report/internal/metrics"
)

// PlotTrajectories writes a plan-view PNG of the given pairs to
// outPath. Reference tracks draw solid, candidates dashed, one color
// per object.
func PlotTrajectories(pairs []*metrics.AlignedPair, outPath string) error {
	p, err := trajectoryPlot(pairs)
	if err != nil {
		return err
	}
	if err := p.Save(10*vg.Inch, 10*vg.Inch, outPath); err != nil {
		return fmt.Errorf("save trajectory plot: %w", err)
	}
	return nil
}

// RenderTrajectoryPNG writes the plan-view plot as PNG bytes, for
// serving over HTTP without a scratch file.
func RenderTrajectoryPNG(pairs []*metrics.AlignedPair, w io.Writer) error {
	p, err := trajectoryPlot(pairs)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(10*vg.Inch, 10*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render trajectory plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("render trajectory plot: %w", err)
	}
	return nil
}

func trajectoryPlot(pairs []*metrics.AlignedPair) (*plot.Plot, error) {
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no pairs to plot")
	}

	p := plot.New()
	p.Title.Text = "Trajectories (plan view)"
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	colors := generateColors(len(pairs))

	for i, pair := range pairs {
		refPts := make(plotter.XYs, 0, len(pair.Ref.Samples))
		for _, s := range pair.Ref.Samples {
			refPts = append(refPts, plotter.XY{X: s.Position.X, Y: s.Position.Y})
		}
		candPts := make(plotter.XYs, 0, len(pair.Cand.Samples))
		for _, s := range pair.Cand.Samples {
			candPts = append(candPts, plotter.XY{X: s.Position.X, Y: s.Position.Y})
		}

		refLine, err := plotter.NewLine(refPts)
		if err != nil {
			return nil, err
		}
		refLine.Color = colors[i]
		refLine.Width = vg.Points(1)
		p.Add(refLine)
		p.Legend.Add(fmt.Sprintf("object %d", pair.Ref.ID), refLine)

		candLine, err := plotter.NewLine(candPts)
		if err != nil {
			return nil, err
		}
		candLine.Color = colors[i]
		candLine.Width = vg.Points(1)
		candLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(candLine)
		p.Legend.Add(fmt.Sprintf("object %d (candidate)", pair.Cand.ID), candLine)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

// WriteDeviationPlots writes per-sample deviation PNGs to outputDir:
// one for position, one for yaw. Returns the number of files written.
func WriteDeviationPlots(results []*metrics.Result, outputDir string) (int, error) {
	if len(results) == 0 {
		return 0, nil
	}

	posFile := filepath.Join(outputDir, "position_deviation.png")
	if err := deviationPlot(results, posDevSeries, "Position Deviation", "Deviation (m)",
		results[0].Tolerances.Position, posFile); err != nil {
		return 0, fmt.Errorf("position plot: %w", err)
	}

	yawFile := filepath.Join(outputDir, "yaw_deviation.png")
	if err := deviationPlot(results, yawDevSeries, "Yaw Deviation", "Deviation (rad)",
		results[0].Tolerances.Angle, yawFile); err != nil {
		return 1, fmt.Errorf("yaw plot: %w", err)
	}

	return 2, nil
}

func posDevSeries(r *metrics.Result) []float64 { return r.PosDev }
func yawDevSeries(r *metrics.Result) []float64 { return r.YawDev }

func deviationPlot(results []*metrics.Result, series func(*metrics.Result) []float64, title, yLabel string, tol float64, outPath string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = yLabel

	colors := generateColors(len(results))

	maxSamples := 0
	for i, res := range results {
		devs := series(res)
		if len(devs) > maxSamples {
			maxSamples = len(devs)
		}

		pts := make(plotter.XYs, 0, len(devs))
		for j, d := range devs {
			pts = append(pts, plotter.XY{X: float64(j), Y: d})
		}
		if len(pts) == 0 {
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("object %d", res.ObjectID), line)
	}

	if tol > 0 && maxSamples > 0 {
		tolPts := plotter.XYs{
			{X: 0, Y: tol},
			{X: float64(maxSamples - 1), Y: tol},
		}
		tolLine, err := plotter.NewLine(tolPts)
		if err != nil {
			return err
		}
		tolLine.Color = color.RGBA{R: 200, A: 255}
		tolLine.Width = vg.Points(1)
		tolLine.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		p.Add(tolLine)
		p.Legend.Add("tolerance", tolLine)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(14*vg.Inch, 6*vg.Inch, outPath); err != nil {
		return fmt.Errorf("save deviation plot: %w", err)
	}
	return nil
}
