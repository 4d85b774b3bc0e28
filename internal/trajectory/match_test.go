package trajectory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/scenario.report/internal/geom"
)

func startTrack(id uint64, x, y, z float64) *ObjectTrack {
	return &ObjectTrack{
		ID:      id,
		Samples: []Sample{{T: 0, Position: geom.Vec3{X: x, Y: y, Z: z}}},
	}
}

func TestClosestByStart(t *testing.T) {
	t.Parallel()
	ref := startTrack(1, 0, 0, 0)
	far := startTrack(7, 5, 0, 0)
	near := startTrack(9, 0.5, -0.2, 0)

	got := ClosestByStart(ref, []*ObjectTrack{far, near})
	assert.Same(t, near, got)

	// Height differences are ignored, matching is on the ground plane.
	lifted := startTrack(11, 0.1, 0, 50)
	got = ClosestByStart(ref, []*ObjectTrack{near, lifted})
	assert.Same(t, lifted, got)

	assert.Nil(t, ClosestByStart(ref, nil))
}

func TestPairTracksByID(t *testing.T) {
	t.Parallel()
	refs := []*ObjectTrack{startTrack(1, 0, 0, 0), startTrack(2, 10, 0, 0)}
	cands := []*ObjectTrack{startTrack(2, 10.1, 0, 0), startTrack(1, 0.1, 0, 0)}

	pairs, err := PairTracks(refs, cands, PairByID)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, uint64(1), pairs[0].Cand.ID)
	assert.Equal(t, uint64(2), pairs[1].Cand.ID)

	_, err = PairTracks(refs, cands[:1], PairByID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no candidate for object 1")
}

func TestPairTracksByStartSurvivesRenumbering(t *testing.T) {
	t.Parallel()
	refs := []*ObjectTrack{startTrack(7, 0, 0, 0), startTrack(9, 10, 0, 0)}
	// The engine renumbered both objects but kept their geometry.
	cands := []*ObjectTrack{startTrack(2, 10.05, 0, 0), startTrack(1, 0.05, 0, 0)}

	pairs, err := PairTracks(refs, cands, PairByStart)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, uint64(1), pairs[0].Cand.ID)
	assert.Equal(t, uint64(2), pairs[1].Cand.ID)
}

func TestPairTracksNoCandidates(t *testing.T) {
	t.Parallel()
	_, err := PairTracks([]*ObjectTrack{startTrack(1, 0, 0, 0)}, nil, PairByStart)
	require.Error(t, err)
}
