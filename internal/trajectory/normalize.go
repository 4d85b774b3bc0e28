package trajectory

import (
	"fmt"
	"math"

	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/osi"
)

// OffsetMode selects how the coordinate origin is chosen.
type OffsetMode int

const (
	// OffsetAuto rebases onto the first position encountered, but only
	// when its magnitude would cost precision downstream.
	OffsetAuto OffsetMode = iota
	// OffsetOrigin rebases onto an explicitly supplied origin.
	OffsetOrigin
	// OffsetOff leaves coordinates untouched.
	OffsetOff
)

func (m OffsetMode) String() string {
	switch m {
	case OffsetAuto:
		return "auto"
	case OffsetOrigin:
		return "origin"
	case OffsetOff:
		return "off"
	}
	return "unknown"
}

// ParseOffsetMode resolves an offset mode name as written in
// configuration files and flags.
func ParseOffsetMode(s string) (OffsetMode, error) {
	switch s {
	case "", "auto":
		return OffsetAuto, nil
	case "origin":
		return OffsetOrigin, nil
	case "off":
		return OffsetOff, nil
	}
	return OffsetAuto, fmt.Errorf("unknown offset mode %q", s)
}

// RebaseThreshold is the coordinate magnitude at which auto mode kicks
// in. Projected map coordinates sit in the 1e5..1e7 range, where a
// float64 no longer resolves sub-millimeter steps after squaring.
const RebaseThreshold = 1e5

// NormalizePolicy is the offset configuration for one trace.
type NormalizePolicy struct {
	Mode   OffsetMode
	Origin geom.Vec3
}

// Normalizer shifts every position of a trace by a fixed offset chosen
// from the first frame. The same input trace always produces the same
// offset. Orientations are never touched.
type Normalizer struct {
	policy NormalizePolicy
	primed bool
	active bool
	offset geom.Vec3
}

func NewNormalizer(policy NormalizePolicy) *Normalizer {
	return &Normalizer{policy: policy}
}

// Apply rebases the frame's object positions in place. The first frame
// carrying a position primes the offset; earlier positionless frames
// pass through untouched.
func (n *Normalizer) Apply(gt *osi.GroundTruth) {
	if !n.primed {
		n.prime(gt)
	}
	if !n.active {
		return
	}
	for _, mo := range gt.MovingObjects {
		if mo != nil && mo.Base != nil && mo.Base.Position != nil {
			*mo.Base.Position = mo.Base.Position.Sub(n.offset)
		}
	}
	for _, so := range gt.StationaryObjects {
		if so != nil && so.Base != nil && so.Base.Position != nil {
			*so.Base.Position = so.Base.Position.Sub(n.offset)
		}
	}
}

func (n *Normalizer) prime(gt *osi.GroundTruth) {
	switch n.policy.Mode {
	case OffsetOff:
		n.primed = true
	case OffsetOrigin:
		n.offset = n.policy.Origin
		n.active = true
		n.primed = true
	case OffsetAuto:
		first, ok := firstPosition(gt)
		if !ok {
			return
		}
		n.primed = true
		if maxAbs(first) < RebaseThreshold {
			return
		}
		n.offset = first
		n.active = true
	}
}

// Offset reports the subtracted offset and whether one was applied.
func (n *Normalizer) Offset() (geom.Vec3, bool) {
	return n.offset, n.active
}

// Restore maps a rebased position back to the source frame.
func (n *Normalizer) Restore(p geom.Vec3) geom.Vec3 {
	if !n.active {
		return p
	}
	return p.Add(n.offset)
}

func firstPosition(gt *osi.GroundTruth) (geom.Vec3, bool) {
	for _, mo := range gt.MovingObjects {
		if mo != nil && mo.Base != nil && mo.Base.Position != nil {
			return *mo.Base.Position, true
		}
	}
	for _, so := range gt.StationaryObjects {
		if so != nil && so.Base != nil && so.Base.Position != nil {
			return *so.Base.Position, true
		}
	}
	return geom.Vec3{}, false
}

func maxAbs(v geom.Vec3) float64 {
	return math.Max(math.Abs(v.X), math.Max(math.Abs(v.Y), math.Abs(v.Z)))
}
