package dataset

import (
	"errors"
	"io"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/scenario.report/internal/osi"
	"github.com/banshee-data/scenario.report/internal/trace"
)

func readFrames(t *testing.T, path string) []*osi.GroundTruth {
	t.Helper()
	r, err := trace.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer r.Close()

	var frames []*osi.GroundTruth
	for {
		gt, err := r.NextGroundTruth()
		if errors.Is(err, io.EOF) {
			return frames
		}
		if err != nil {
			t.Fatalf("read frame %d: %v", len(frames), err)
		}
		frames = append(frames, gt)
	}
}

func TestParseShape(t *testing.T) {
	cases := []struct {
		in   string
		want Shape
	}{
		{"", ShapeLine},
		{"line", ShapeLine},
		{"straight-line", ShapeLine},
		{"arc", ShapeArc},
		{"crossing", ShapeCrossing},
	}
	for _, c := range cases {
		got, err := ParseShape(c.in)
		if err != nil {
			t.Errorf("ParseShape(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseShape(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseShape("zigzag"); err == nil {
		t.Error("expected unknown shape to be rejected")
	}
}

func TestGenerateLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "line.osi")
	opts := GenerateOptions{Shape: ShapeLine, Objects: 2, Frames: 4, Step: 0.5, Speed: 2}
	if err := Generate(path, opts); err != nil {
		t.Fatalf("generate: %v", err)
	}

	frames := readFrames(t, path)
	if len(frames) != 4 {
		t.Fatalf("frame count = %d, want 4", len(frames))
	}
	for i, gt := range frames {
		if got, want := gt.Timestamp.Float64(), 0.5*float64(i); got != want {
			t.Errorf("frame %d timestamp = %v, want %v", i, got, want)
		}
		if len(gt.MovingObjects) != 2 {
			t.Fatalf("frame %d has %d objects, want 2", i, len(gt.MovingObjects))
		}
		if gt.HostVehicleID == nil || gt.HostVehicleID.Value != 1 {
			t.Errorf("frame %d host vehicle = %v, want 1", i, gt.HostVehicleID)
		}

		// 2 m/s for half-second steps advances one meter per frame.
		lead := gt.MovingObjects[0].Base.Position
		if lead.X != float64(i) || lead.Y != 0 {
			t.Errorf("frame %d lead position = (%v, %v), want (%d, 0)", i, lead.X, lead.Y, i)
		}
		beside := gt.MovingObjects[1].Base.Position
		if beside.X != float64(i) || beside.Y != laneWidth {
			t.Errorf("frame %d second position = (%v, %v)", i, beside.X, beside.Y)
		}
	}
}

func TestGenerateArc(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arc.osi")
	opts := GenerateOptions{Shape: ShapeArc, Frames: 2, Step: 1, Speed: 10}
	if err := Generate(path, opts); err != nil {
		t.Fatalf("generate: %v", err)
	}

	frames := readFrames(t, path)
	if len(frames) != 2 {
		t.Fatalf("frame count = %d, want 2", len(frames))
	}

	start := frames[0].MovingObjects[0].Base
	if start.Position.X != 0 || start.Position.Y != 0 || start.Orientation.Yaw != 0 {
		t.Errorf("arc start pose = %+v, want origin heading +X", start)
	}

	theta := 10.0 / arcRadius
	got := frames[1].MovingObjects[0].Base
	if math.Abs(got.Position.X-arcRadius*math.Sin(theta)) > 1e-9 {
		t.Errorf("arc X = %v", got.Position.X)
	}
	if math.Abs(got.Position.Y-arcRadius*(1-math.Cos(theta))) > 1e-9 {
		t.Errorf("arc Y = %v", got.Position.Y)
	}
	if math.Abs(got.Orientation.Yaw-theta) > 1e-9 {
		t.Errorf("arc yaw = %v, want %v", got.Orientation.Yaw, theta)
	}
}

func TestGenerateCrossingMeetsAtMidpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crossing.osi")
	opts := GenerateOptions{Shape: ShapeCrossing, Frames: 3, Step: 1, Speed: 5}
	if err := Generate(path, opts); err != nil {
		t.Fatalf("generate: %v", err)
	}

	frames := readFrames(t, path)
	if len(frames) != 3 {
		t.Fatalf("frame count = %d, want 3", len(frames))
	}

	first := frames[0].MovingObjects
	if p := first[0].Base.Position; p.X != -5 || p.Y != 0 {
		t.Errorf("frame 0 object 1 at (%v, %v), want (-5, 0)", p.X, p.Y)
	}
	if p := first[1].Base.Position; p.X != 0 || p.Y != -5 {
		t.Errorf("frame 0 object 2 at (%v, %v), want (0, -5)", p.X, p.Y)
	}
	if yaw := first[1].Base.Orientation.Yaw; yaw != math.Pi/2 {
		t.Errorf("frame 0 object 2 yaw = %v, want pi/2", yaw)
	}

	mid := frames[1].MovingObjects
	for i, mo := range mid {
		if p := mo.Base.Position; p.X != 0 || p.Y != 0 {
			t.Errorf("midpoint object %d at (%v, %v), want origin", i+1, p.X, p.Y)
		}
	}
}

func TestGenerateCrossingForcesTwoObjects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crossing.osi")
	if err := Generate(path, GenerateOptions{Shape: ShapeCrossing, Frames: 2}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	frames := readFrames(t, path)
	if n := len(frames[0].MovingObjects); n != 2 {
		t.Errorf("object count = %d, want 2", n)
	}
}

func TestGenerateDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.osi")
	if err := Generate(path, GenerateOptions{}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	frames := readFrames(t, path)
	if len(frames) != 60 {
		t.Errorf("frame count = %d, want 60", len(frames))
	}
	if n := len(frames[0].MovingObjects); n != 1 {
		t.Errorf("object count = %d, want 1", n)
	}
}

func TestBuiltinResolve(t *testing.T) {
	b := NewBuiltin(t.TempDir())

	p, err := b.Resolve("crossing")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	frames := readFrames(t, p)
	if len(frames) != 60 || len(frames[0].MovingObjects) != 2 {
		t.Errorf("crossing fixture has %d frames of %d objects",
			len(frames), len(frames[0].MovingObjects))
	}

	again, err := b.Resolve("crossing")
	if err != nil {
		t.Fatalf("cached resolve: %v", err)
	}
	if again != p {
		t.Errorf("cached resolve = %q, want %q", again, p)
	}
}

func TestBuiltinUnknownName(t *testing.T) {
	b := NewBuiltin(t.TempDir())
	_, err := b.Resolve("figure-eight")
	if err == nil || !strings.Contains(err.Error(), "straight-line") {
		t.Errorf("unknown fixture error = %v, want valid names listed", err)
	}
}

func TestResolveBuiltinSource(t *testing.T) {
	cache := t.TempDir()
	p, err := Resolve("builtin:straight-line", cache)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := filepath.Join(cache, "straight-line.osi"); p != want {
		t.Errorf("resolved %q, want %q", p, want)
	}
}
