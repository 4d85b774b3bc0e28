package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scenario.report/internal/geom"
	"github.com/banshee-data/scenario.report/internal/trajectory"
)

type pose struct {
	t, x, y, yaw float64
}

func testTrack(id uint64, poses ...pose) *trajectory.ObjectTrack {
	tr := &trajectory.ObjectTrack{
		ID:        id,
		Dimension: geom.Dim3{Length: 4.2, Width: 1.8, Height: 1.4},
	}
	for _, p := range poses {
		tr.Samples = append(tr.Samples, trajectory.Sample{
			T:           p.t,
			Position:    geom.Vec3{X: p.x, Y: p.y},
			Orientation: geom.Euler{Yaw: p.yaw},
		})
	}
	return tr
}

func TestAlignAcceptsSharedTimeBase(t *testing.T) {
	t.Parallel()

	ref := testTrack(1, pose{t: 0}, pose{t: 0.05}, pose{t: 0.1})
	cand := testTrack(1, pose{t: 1e-9}, pose{t: 0.05}, pose{t: 0.1 - 1e-9})

	pair, err := Align(ref, cand, DefaultTimeTolerance)
	require.NoError(t, err)
	assert.Same(t, ref, pair.Ref)
	assert.Same(t, cand, pair.Cand)
}

func TestAlignReportsFirstDivergentIndex(t *testing.T) {
	t.Parallel()

	ref := testTrack(3, pose{t: 0.00}, pose{t: 0.05}, pose{t: 0.10})
	cand := testTrack(3, pose{t: 0.00}, pose{t: 0.06}, pose{t: 0.10})

	_, err := Align(ref, cand, 1e-6)
	var ae *AlignmentError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 1, ae.Index)
	assert.Equal(t, uint64(3), ae.ObjectID)
	assert.Equal(t, 0.05, ae.RefTime)
	assert.Equal(t, 0.06, ae.CandTime)
	assert.Contains(t, err.Error(), "index 1")
}

func TestAlignRejectsLengthMismatch(t *testing.T) {
	t.Parallel()

	ref := testTrack(2, pose{t: 0}, pose{t: 0.05}, pose{t: 0.1})
	cand := testTrack(2, pose{t: 0}, pose{t: 0.05})

	_, err := Align(ref, cand, DefaultTimeTolerance)
	var ae *AlignmentError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, -1, ae.Index, "length mismatch never truncates")
	assert.Equal(t, 3, ae.RefLen)
	assert.Equal(t, 2, ae.CandLen)
	assert.Contains(t, err.Error(), "3 samples, candidate 2")
}

func TestAlignRejectsEmptyTracks(t *testing.T) {
	t.Parallel()

	_, err := Align(testTrack(1), testTrack(1), DefaultTimeTolerance)
	var ae *AlignmentError
	require.ErrorAs(t, err, &ae)
}

func TestAlignToleranceSelection(t *testing.T) {
	t.Parallel()

	ref := testTrack(1, pose{t: 0}, pose{t: 0.05})
	cand := testTrack(1, pose{t: 0}, pose{t: 0.05 + 1e-9})

	// Non-positive tolerance selects the default, which absorbs
	// nanosecond jitter.
	_, err := Align(ref, cand, 0)
	require.NoError(t, err)

	_, err = Align(ref, cand, 1e-12)
	var ae *AlignmentError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 1, ae.Index)
}
