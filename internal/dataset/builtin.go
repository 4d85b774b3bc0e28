package dataset

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/osi"
	"github.com/banshee-data/scenario.report/internal/trace"
)

const builtinScheme = "builtin:"

const (
	laneWidth = 3.5
	arcRadius = 30.0
)

// Shape selects a synthetic trajectory family.
type Shape int

const (
	ShapeLine Shape = iota
	ShapeArc
	ShapeCrossing
)

func (s Shape) String() string {
	switch s {
	case ShapeArc:
		return "arc"
	case ShapeCrossing:
		return "crossing"
	default:
		return "line"
	}
}

// ParseShape reads a shape name as used in builtin sources and
// generator flags.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "", "line", "straight-line":
		return ShapeLine, nil
	case "arc":
		return ShapeArc, nil
	case "crossing":
		return ShapeCrossing, nil
	}
	return ShapeLine, fmt.Errorf("unknown shape %q (valid: line, arc, crossing)", s)
}

// Fixture parameters for the named builtin traces. All run at 10 m/s,
// sampled every 50 ms for three seconds.
var builtinFixtures = map[string]GenerateOptions{
	"straight-line": {Shape: ShapeLine, Objects: 1},
	"arc":           {Shape: ShapeArc, Objects: 1},
	"crossing":      {Shape: ShapeCrossing, Objects: 2},
}

// BuiltinNames lists the available synthetic fixtures.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtinFixtures))
	for name := range builtinFixtures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builtin generates named synthetic fixtures into a cache directory.
// Fixtures persist between runs; Cleanup removes the cache directory.
type Builtin struct {
	Cache string
}

// NewBuiltin returns a builtin fixture provider caching into cacheDir.
func NewBuiltin(cacheDir string) *Builtin {
	return &Builtin{Cache: cacheDir}
}

// Resolve generates the named fixture if needed and returns its path.
func (b *Builtin) Resolve(name string) (string, error) {
	opts, ok := builtinFixtures[name]
	if !ok {
		return "", fmt.Errorf("unknown builtin trace %q (valid: %s)",
			name, strings.Join(BuiltinNames(), ", "))
	}
	dest := filepath.Join(b.Cache, name+".osi")
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(b.Cache, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	if err := Generate(dest, opts); err != nil {
		return "", fmt.Errorf("generate %s: %w", name, err)
	}
	return dest, nil
}

// Cleanup removes the cache directory and the fixtures in it.
func (b *Builtin) Cleanup() error {
	return os.RemoveAll(b.Cache)
}

// GenerateOptions control the synthetic trace generator. Zero fields
// take defaults: one object, 60 frames every 50 ms, 10 m/s.
type GenerateOptions struct {
	Shape   Shape
	Objects int
	Frames  int
	Step    float64 // seconds between frames
	Speed   float64 // meters per second
}

func (o GenerateOptions) withDefaults() GenerateOptions {
	if o.Objects <= 0 {
		o.Objects = 1
	}
	if o.Shape == ShapeCrossing && o.Objects < 2 {
		o.Objects = 2
	}
	if o.Frames <= 0 {
		o.Frames = 60
	}
	if o.Step <= 0 {
		o.Step = 0.05
	}
	if o.Speed <= 0 {
		o.Speed = 10
	}
	return o
}

// Generate writes a synthetic trace to path. Frames are sensor views
// wrapping ground truth, so readers decode them no matter how the file
// is named. Object 1 is marked as the host vehicle so generated traces
// work with ego-based scenario profiles.
func Generate(path string, opts GenerateOptions) error {
	opts = opts.withDefaults()
	w, err := trace.Create(path, trace.MessageTypeSensorView)
	if err != nil {
		return err
	}
	for i := 0; i < opts.Frames; i++ {
		if err := w.Write(osi.MarshalSensorView(generateFrame(opts, i))); err != nil {
			w.Close()
			return err
		}
	}
	return w.Close()
}

func generateFrame(opts GenerateOptions, frame int) *osi.SensorView {
	t := float64(frame) * opts.Step
	v := osi.CurrentVersion
	gt := &osi.GroundTruth{
		Version:       &v,
		Timestamp:     osi.TimestampFromSeconds(t),
		HostVehicleID: &osi.Identifier{Value: 1},
	}
	for j := 0; j < opts.Objects; j++ {
		pos, yaw, vel := objectPose(opts, j, t)
		gt.MovingObjects = append(gt.MovingObjects, &osi.MovingObject{
			ID:   &osi.Identifier{Value: uint64(j + 1)},
			Type: osi.ObjectTypeVehicle,
			Base: &osi.BaseMoving{
				Dimension:   &geom.Dim3{Length: 4.5, Width: 1.75, Height: 1.5},
				Position:    &pos,
				Orientation: &geom.Euler{Yaw: yaw},
				Velocity:    &vel,
			},
		})
	}
	return &osi.SensorView{
		Version:           &v,
		Timestamp:         gt.Timestamp,
		HostVehicleID:     gt.HostVehicleID,
		GlobalGroundTruth: gt,
	}
}

// objectPose places object j at time t for the configured shape.
func objectPose(opts GenerateOptions, j int, t float64) (pos geom.Vec3, yaw float64, vel geom.Vec3) {
	switch opts.Shape {
	case ShapeArc:
		// Concentric left turns starting at the origin heading +X.
		r := arcRadius + laneWidth*float64(j)
		theta := opts.Speed * t / r
		pos = geom.Vec3{X: r * math.Sin(theta), Y: r * (1 - math.Cos(theta))}
		yaw = theta
		vel = geom.Vec3{X: opts.Speed * math.Cos(theta), Y: opts.Speed * math.Sin(theta)}
	case ShapeCrossing:
		// Objects alternate axes and all reach the intersection at the
		// trace midpoint.
		mid := opts.Step * float64(opts.Frames-1) / 2
		lane := laneWidth * float64(j/2)
		s := opts.Speed * (t - mid)
		if j%2 == 0 {
			pos = geom.Vec3{X: s, Y: lane}
			vel = geom.Vec3{X: opts.Speed}
		} else {
			pos = geom.Vec3{X: lane, Y: s}
			yaw = math.Pi / 2
			vel = geom.Vec3{Y: opts.Speed}
		}
	default:
		// Parallel lanes heading +X.
		pos = geom.Vec3{X: opts.Speed * t, Y: laneWidth * float64(j)}
		vel = geom.Vec3{X: opts.Speed}
	}
	return pos, yaw, vel
}
