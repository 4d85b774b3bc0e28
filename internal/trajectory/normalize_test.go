package trajectory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/osi"
)

func TestNormalizeAutoRebasesMapCoordinates(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(NormalizePolicy{Mode: OffsetAuto})

	f0 := frame(0, vehicle(1, 350000.25, 5700000.5))
	n.Apply(f0)
	off, ok := n.Offset()
	require.True(t, ok)
	assert.Equal(t, geom.Vec3{X: 350000.25, Y: 5700000.5}, off)
	assert.InDelta(t, 0, f0.MovingObjects[0].Base.Position.X, 1e-9)
	assert.InDelta(t, 0, f0.MovingObjects[0].Base.Position.Y, 1e-9)

	f1 := frame(0.05, vehicle(1, 350001.25, 5700000.5))
	n.Apply(f1)
	shifted := *f1.MovingObjects[0].Base.Position
	assert.InDelta(t, 1, shifted.X, 1e-9)

	restored := n.Restore(shifted)
	assert.InDelta(t, 350001.25, restored.X, 1e-9)
	assert.InDelta(t, 5700000.5, restored.Y, 1e-9)
}

func TestNormalizeAutoLeavesLocalCoordinates(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(NormalizePolicy{Mode: OffsetAuto})
	f := frame(0, vehicle(1, 5, -3))
	n.Apply(f)

	_, ok := n.Offset()
	assert.False(t, ok)
	assert.InDelta(t, 5, f.MovingObjects[0].Base.Position.X, 1e-12)
	assert.Equal(t, geom.Vec3{X: 5, Y: -3}, n.Restore(geom.Vec3{X: 5, Y: -3}))
}

func TestNormalizeExplicitOrigin(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(NormalizePolicy{
		Mode:   OffsetOrigin,
		Origin: geom.Vec3{X: 100, Y: 200},
	})
	f := frame(0, vehicle(1, 105, 195))
	n.Apply(f)

	off, ok := n.Offset()
	require.True(t, ok)
	assert.Equal(t, geom.Vec3{X: 100, Y: 200}, off)
	assert.InDelta(t, 5, f.MovingObjects[0].Base.Position.X, 1e-12)
	assert.InDelta(t, -5, f.MovingObjects[0].Base.Position.Y, 1e-12)
}

func TestNormalizeOff(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(NormalizePolicy{Mode: OffsetOff})
	f := frame(0, vehicle(1, 350000, 5700000))
	n.Apply(f)

	_, ok := n.Offset()
	assert.False(t, ok)
	assert.InDelta(t, 350000, f.MovingObjects[0].Base.Position.X, 1e-12)
}

func TestNormalizePrimesOnFirstPosition(t *testing.T) {
	t.Parallel()
	n := NewNormalizer(NormalizePolicy{Mode: OffsetAuto})

	// A positionless frame must not pin the offset.
	n.Apply(frame(0))
	_, ok := n.Offset()
	assert.False(t, ok)

	f := frame(0.05, vehicle(1, 350000, 0))
	n.Apply(f)
	_, ok = n.Offset()
	require.True(t, ok)
	assert.InDelta(t, 0, f.MovingObjects[0].Base.Position.X, 1e-9)
}

func TestNormalizeShiftsStationaryObjects(t *testing.T) {
	t.Parallel()
	gt := frame(0, vehicle(1, 350000, 5700000))
	gt.StationaryObjects = []*osi.StationaryObject{{
		ID:   &osi.Identifier{Value: 40},
		Base: &osi.BaseStationary{Position: &geom.Vec3{X: 350020, Y: 5700000}},
	}}

	n := NewNormalizer(NormalizePolicy{Mode: OffsetAuto})
	n.Apply(gt)
	assert.InDelta(t, 20, gt.StationaryObjects[0].Base.Position.X, 1e-9)
	assert.InDelta(t, 0, gt.StationaryObjects[0].Base.Position.Y, 1e-9)
}
