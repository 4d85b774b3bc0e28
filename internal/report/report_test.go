package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/metrics"
	"github.com/banshee-data/scenario.report/internal/trajectory"
)

// testPair builds a four-sample straight-line pair with the candidate
// shifted along X by offset.
func testPair(id uint64, offset float64) *metrics.AlignedPair {
	ref := &trajectory.ObjectTrack{ID: id}
	cand := &trajectory.ObjectTrack{ID: id}
	for i := 0; i < 4; i++ {
		ts := float64(i) * 0.1
		ref.Samples = append(ref.Samples, trajectory.Sample{
			T:        ts,
			Position: geom.Vec3{X: float64(i) * 2, Y: float64(id)},
		})
		cand.Samples = append(cand.Samples, trajectory.Sample{
			T:        ts,
			Position: geom.Vec3{X: float64(i)*2 + offset, Y: float64(id)},
		})
	}
	return &metrics.AlignedPair{Ref: ref, Cand: cand}
}

func testResults(t *testing.T) []*metrics.Result {
	t.Helper()
	tols := metrics.Tolerances{Position: 0.1, Angle: 0.05}
	return []*metrics.Result{
		metrics.Compare(testPair(1, 0.02), tols),
		metrics.Compare(testPair(3, 0.05), tols),
	}
}

func checkPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if len(data) < 8 {
		t.Fatalf("%s too small: %d bytes", path, len(data))
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Errorf("%s is not a PNG (header %x)", path, data[:4])
	}
}

func TestPlotTrajectories(t *testing.T) {
	pairs := []*metrics.AlignedPair{testPair(1, 0.02), testPair(3, 0.05)}
	out := filepath.Join(t.TempDir(), "trajectories.png")

	if err := PlotTrajectories(pairs, out); err != nil {
		t.Fatalf("PlotTrajectories() error = %v", err)
	}
	checkPNG(t, out)
}

func TestPlotTrajectoriesEmpty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "trajectories.png")
	if err := PlotTrajectories(nil, out); err == nil {
		t.Error("expected error for empty pairs")
	}
}

func TestRenderTrajectoryPNG(t *testing.T) {
	pairs := []*metrics.AlignedPair{testPair(1, 0.02)}

	var buf bytes.Buffer
	if err := RenderTrajectoryPNG(pairs, &buf); err != nil {
		t.Fatalf("RenderTrajectoryPNG() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Errorf("output is not a PNG (header %x)", buf.Bytes()[:4])
	}

	if err := RenderTrajectoryPNG(nil, &buf); err == nil {
		t.Error("expected error for empty pairs")
	}
}

func TestWriteDeviationPlots(t *testing.T) {
	dir := t.TempDir()

	n, err := WriteDeviationPlots(testResults(t), dir)
	if err != nil {
		t.Fatalf("WriteDeviationPlots() error = %v", err)
	}
	if n != 2 {
		t.Errorf("plots written = %d, want 2", n)
	}
	checkPNG(t, filepath.Join(dir, "position_deviation.png"))
	checkPNG(t, filepath.Join(dir, "yaw_deviation.png"))
}

func TestWriteDeviationPlotsEmpty(t *testing.T) {
	n, err := WriteDeviationPlots(nil, t.TempDir())
	if err != nil {
		t.Fatalf("WriteDeviationPlots() error = %v", err)
	}
	if n != 0 {
		t.Errorf("plots written = %d, want 0", n)
	}
}

func TestDeviationChart(t *testing.T) {
	var buf bytes.Buffer
	if err := DeviationChart(testResults(t), ChartOptions{}, &buf); err != nil {
		t.Fatalf("DeviationChart() error = %v", err)
	}

	html := buf.String()
	if !strings.Contains(html, "object 3") {
		t.Error("chart missing object series name")
	}
	if !strings.Contains(html, echartsAssetsHost) {
		t.Error("chart missing assets host")
	}
}

func TestDeviationChartEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := DeviationChart(nil, ChartOptions{}, &buf); err == nil {
		t.Error("expected error for empty results")
	}
}

func TestTrajectoryScatter(t *testing.T) {
	pairs := []*metrics.AlignedPair{testPair(1, 0.02)}

	var buf bytes.Buffer
	opt := ChartOptions{Title: "cut-in", SpeedUnits: "mph"}
	if err := TrajectoryScatter(pairs, opt, &buf); err != nil {
		t.Fatalf("TrajectoryScatter() error = %v", err)
	}

	html := buf.String()
	if !strings.Contains(html, "reference") || !strings.Contains(html, "candidate") {
		t.Error("chart missing reference/candidate series")
	}
	if !strings.Contains(html, "cut-in") {
		t.Error("chart missing custom title")
	}
	if !strings.Contains(html, "mph") {
		t.Error("chart missing speed units in subtitle")
	}
}

func TestSparkline(t *testing.T) {
	out := Sparkline([]float64{0, 0.02, 0.05, 0.03}, "position deviation (m)")
	if out == "" {
		t.Fatal("Sparkline() returned empty graph")
	}
	if !strings.Contains(out, "position deviation (m)") {
		t.Error("sparkline missing caption")
	}

	if got := Sparkline(nil, "empty"); got != "" {
		t.Errorf("Sparkline(nil) = %q, want empty", got)
	}
}

func TestGenerateColors(t *testing.T) {
	colors := generateColors(6)
	if len(colors) != 6 {
		t.Fatalf("len(colors) = %d, want 6", len(colors))
	}
	seen := make(map[string]bool)
	for _, c := range colors {
		r, g, b, _ := c.RGBA()
		key := string(rune(r)) + string(rune(g)) + string(rune(b))
		if seen[key] {
			t.Error("palette contains duplicate color")
		}
		seen[key] = true
	}

	if generateColors(0) != nil {
		t.Error("generateColors(0) should be nil")
	}
}

func TestMeanSpeed(t *testing.T) {
	// 6 m over 0.3 s
	got := meanSpeedMPS([]*metrics.AlignedPair{testPair(1, 0)})
	if math.Abs(got-20.0) > 1e-9 {
		t.Errorf("meanSpeedMPS = %v, want 20", got)
	}

	if got := meanSpeedMPS(nil); got != 0 {
		t.Errorf("meanSpeedMPS(nil) = %v, want 0", got)
	}
}
