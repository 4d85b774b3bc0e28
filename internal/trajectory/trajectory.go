// Package trajectory turns decoded ground truth frames into per-object
// timestamped tracks. It validates the invariants scenario emission and
// comparison rely on (strictly increasing per-object timestamps, stable
// static attributes), rebases large map coordinates onto a local origin
// and pairs reference tracks with candidate tracks for comparison.
package trajectory

import (
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/osi"
	"github.com/banshee-data/scenario.report/internal/trace"
)

// Sample is one timestamped pose.
type Sample struct {
	T           float64
	Position    geom.Vec3
	Orientation geom.Euler
}

// ObjectTrack is the ordered trajectory of one object plus the static
// attributes scenario emission needs. Samples are strictly increasing
// in time; an object may be absent from any subset of frames.
type ObjectTrack struct {
	ID          uint64
	Host        bool
	Type        osi.ObjectType
	VehicleType osi.VehicleType

	Dimension       geom.Dim3
	BBCenterToRear  geom.Vec3
	BBCenterToFront *geom.Vec3
	WheelRadius     float64

	// DerivedAxle marks a BBCenterToRear synthesized from the bounding
	// box because the trace carried no vehicle attributes.
	DerivedAxle bool

	Samples []Sample
}

// Start returns the first sample. Tracks produced by a Builder always
// hold at least one.
func (t *ObjectTrack) Start() Sample { return t.Samples[0] }

// End returns the last sample.
func (t *ObjectTrack) End() Sample { return t.Samples[len(t.Samples)-1] }

// Duration is the time covered by the track.
func (t *ObjectTrack) Duration() float64 { return t.End().T - t.Start().T }

// Times returns the sample timestamps in order.
func (t *ObjectTrack) Times() []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.T
	}
	return out
}

// ValidationError reports a frame that violates a track invariant, with
// enough context to locate the fault in the source trace.
type ValidationError struct {
	ObjectID uint64
	Frame    int
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("object %d frame %d: %s %s", e.ObjectID, e.Frame, e.Field, e.Reason)
}

// BuildOptions tune track accumulation.
type BuildOptions struct {
	// SkipInvalid drops objects that violate track invariants instead
	// of failing the whole build. Dropped objects are reported through
	// Skipped.
	SkipInvalid bool
}

// Builder accumulates frames into per-object tracks. Frames stream in
// one at a time; Tracks runs the final attribute checks and returns the
// result.
type Builder struct {
	opts   BuildOptions
	frame  int
	states map[uint64]*trackState
	order  []uint64
	bad    map[uint64]*ValidationError
}

type trackState struct {
	track      ObjectTrack
	firstFrame int
	lastT      float64
	hasDim     bool
	hasRear    bool
	hasFront   bool
	hasRadius  bool
}

func NewBuilder(opts BuildOptions) *Builder {
	return &Builder{
		opts:   opts,
		states: make(map[uint64]*trackState),
		bad:    make(map[uint64]*ValidationError),
	}
}

// AddFrame folds one frame into the accumulated tracks. The frame's
// timestamp becomes the sample timestamp for every object it contains.
func (b *Builder) AddFrame(gt *osi.GroundTruth) error {
	t := gt.Timestamp.Float64()
	var host uint64
	hasHost := gt.HostVehicleID != nil
	if hasHost {
		host = gt.HostVehicleID.Value
	}

	for _, mo := range gt.MovingObjects {
		if mo == nil || mo.ID == nil {
			return &ValidationError{Frame: b.frame, Field: "id", Reason: "missing"}
		}
		id := mo.ID.Value
		if _, dropped := b.bad[id]; dropped {
			continue
		}

		st, ok := b.states[id]
		if !ok {
			st = &trackState{firstFrame: b.frame}
			st.track.ID = id
			st.track.Type = mo.Type
			if mo.VehicleClassification != nil {
				st.track.VehicleType = mo.VehicleClassification.Type
			}
			b.states[id] = st
			b.order = append(b.order, id)
		}
		if hasHost && id == host {
			st.track.Host = true
		}

		if verr := st.absorbStatic(mo, b.frame); verr != nil {
			if err := b.fail(id, verr); err != nil {
				return err
			}
			continue
		}

		if n := len(st.track.Samples); n > 0 {
			if t == st.lastT {
				verr := &ValidationError{ObjectID: id, Frame: b.frame, Field: "timestamp",
					Reason: fmt.Sprintf("duplicate timestamp %v", t)}
				if err := b.fail(id, verr); err != nil {
					return err
				}
				continue
			}
			if t < st.lastT {
				verr := &ValidationError{ObjectID: id, Frame: b.frame, Field: "timestamp",
					Reason: fmt.Sprintf("timestamp %v precedes %v", t, st.lastT)}
				if err := b.fail(id, verr); err != nil {
					return err
				}
				continue
			}
		}

		sample := Sample{T: t}
		if mo.Base != nil {
			if mo.Base.Position != nil {
				sample.Position = *mo.Base.Position
			}
			if mo.Base.Orientation != nil {
				sample.Orientation = *mo.Base.Orientation
			}
		}
		st.track.Samples = append(st.track.Samples, sample)
		st.lastT = t
	}

	b.frame++
	return nil
}

// absorbStatic pins an object's static attributes on first sight and
// flags later frames that disagree. Absent attributes never conflict.
func (st *trackState) absorbStatic(mo *osi.MovingObject, frame int) *ValidationError {
	id := mo.ID.Value
	if mo.Base != nil && mo.Base.Dimension != nil {
		d := *mo.Base.Dimension
		if st.hasDim && d != st.track.Dimension {
			return &ValidationError{ObjectID: id, Frame: frame, Field: "dimension",
				Reason: fmt.Sprintf("changed from %v to %v", st.track.Dimension, d)}
		}
		st.track.Dimension = d
		st.hasDim = true
	}
	va := mo.VehicleAttributes
	if va == nil {
		return nil
	}
	if va.BBCenterToRear != nil {
		v := *va.BBCenterToRear
		if st.hasRear && v != st.track.BBCenterToRear {
			return &ValidationError{ObjectID: id, Frame: frame, Field: "bbcenter_to_rear",
				Reason: fmt.Sprintf("changed from %v to %v", st.track.BBCenterToRear, v)}
		}
		st.track.BBCenterToRear = v
		st.hasRear = true
	}
	if va.BBCenterToFront != nil {
		v := *va.BBCenterToFront
		if st.hasFront && v != *st.track.BBCenterToFront {
			return &ValidationError{ObjectID: id, Frame: frame, Field: "bbcenter_to_front",
				Reason: fmt.Sprintf("changed from %v to %v", *st.track.BBCenterToFront, v)}
		}
		st.track.BBCenterToFront = &v
		st.hasFront = true
	}
	if va.RadiusWheel != 0 {
		if st.hasRadius && va.RadiusWheel != st.track.WheelRadius {
			return &ValidationError{ObjectID: id, Frame: frame, Field: "radius_wheel",
				Reason: fmt.Sprintf("changed from %v to %v", st.track.WheelRadius, va.RadiusWheel)}
		}
		st.track.WheelRadius = va.RadiusWheel
		st.hasRadius = true
	}
	return nil
}

func (b *Builder) fail(id uint64, verr *ValidationError) error {
	if !b.opts.SkipInvalid {
		return verr
	}
	b.bad[id] = verr
	delete(b.states, id)
	return nil
}

// Tracks finalizes the build: objects missing a bounding box are
// rejected, missing axle offsets are derived from it. Track order
// follows first appearance in the trace.
func (b *Builder) Tracks() ([]*ObjectTrack, error) {
	tracks := make([]*ObjectTrack, 0, len(b.states))
	for _, id := range b.order {
		st, ok := b.states[id]
		if !ok {
			continue
		}
		if !st.hasDim {
			verr := &ValidationError{ObjectID: id, Frame: st.firstFrame, Field: "dimension", Reason: "missing"}
			if err := b.fail(id, verr); err != nil {
				return nil, err
			}
			continue
		}
		if !st.hasRear {
			st.track.BBCenterToRear = geom.Vec3{
				X: st.track.Dimension.Length * 0.3,
				Z: st.track.Dimension.Height * 0.5,
			}
			st.track.DerivedAxle = true
		}
		tracks = append(tracks, &st.track)
	}
	return tracks, nil
}

// Skipped lists the objects dropped under SkipInvalid, one error per
// object, in no particular order.
func (b *Builder) Skipped() []*ValidationError {
	out := make([]*ValidationError, 0, len(b.bad))
	for _, verr := range b.bad {
		out = append(out, verr)
	}
	return out
}

// CollectOptions configure Collect.
type CollectOptions struct {
	Offset      NormalizePolicy
	SkipInvalid bool
}

// Collection is the result of reading a whole trace: the tracks plus
// the coordinate offset that was subtracted from them, if any.
type Collection struct {
	Tracks  []*ObjectTrack
	Offset  geom.Vec3
	Shifted bool
	Skipped []*ValidationError
}

// Collect reads r to exhaustion and builds tracks from every frame,
// rebasing coordinates according to opts.Offset on the way.
func Collect(r *trace.Reader, opts CollectOptions) (*Collection, error) {
	norm := NewNormalizer(opts.Offset)
	b := NewBuilder(BuildOptions{SkipInvalid: opts.SkipInvalid})
	for {
		gt, err := r.NextGroundTruth()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		norm.Apply(gt)
		if err := b.AddFrame(gt); err != nil {
			return nil, err
		}
	}
	tracks, err := b.Tracks()
	if err != nil {
		return nil, err
	}
	offset, shifted := norm.Offset()
	return &Collection{
		Tracks:  tracks,
		Offset:  offset,
		Shifted: shifted,
		Skipped: b.Skipped(),
	}, nil
}
