package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alignedOffsetLines(t *testing.T, dy float64) *AlignedPair {
	t.Helper()
	ref := testTrack(1,
		pose{t: 0, x: 0}, pose{t: 0.05, x: 1}, pose{t: 0.1, x: 2}, pose{t: 0.15, x: 3})
	cand := testTrack(1,
		pose{t: 0, x: 0, y: dy}, pose{t: 0.05, x: 1, y: dy},
		pose{t: 0.1, x: 2, y: dy}, pose{t: 0.15, x: 3, y: dy})
	pair, err := Align(ref, cand, DefaultTimeTolerance)
	require.NoError(t, err)
	return pair
}

func TestAreaBetweenOffsetLines(t *testing.T) {
	t.Parallel()

	// Three unit segments offset by one: three unit squares.
	assert.Equal(t, 3.0, AreaBetween(alignedOffsetLines(t, 1)))
}

func TestAreaBetweenCoincidentCurves(t *testing.T) {
	t.Parallel()

	assert.Zero(t, AreaBetween(alignedOffsetLines(t, 0)))
}

func TestMAEOffsetLines(t *testing.T) {
	t.Parallel()

	// |dx| is zero everywhere and |dy| is one, averaged over both
	// components.
	assert.Equal(t, 0.5, MAE(alignedOffsetLines(t, 1)))
}

func TestCurveLengthMeasureSelf(t *testing.T) {
	t.Parallel()

	tr := testTrack(4,
		pose{t: 0, x: 0, y: 0},
		pose{t: 0.05, x: 1, y: 0.5},
		pose{t: 0.1, x: 2, y: 2},
		pose{t: 0.15, x: 2.5, y: 4},
	)
	pair, err := Align(tr, tr, DefaultTimeTolerance)
	require.NoError(t, err)
	assert.Zero(t, CurveLengthMeasure(pair))
}

func TestCurveLengthMeasureGrowsWithDivergence(t *testing.T) {
	t.Parallel()

	diagonal := func(scale float64) *AlignedPair {
		ref := testTrack(1,
			pose{t: 0, x: 0, y: 0}, pose{t: 0.05, x: 1, y: 1},
			pose{t: 0.1, x: 2, y: 2}, pose{t: 0.15, x: 3, y: 3})
		cand := testTrack(1,
			pose{t: 0, x: 0, y: 0}, pose{t: 0.05, x: scale, y: scale},
			pose{t: 0.1, x: 2 * scale, y: 2 * scale}, pose{t: 0.15, x: 3 * scale, y: 3 * scale})
		pair, err := Align(ref, cand, DefaultTimeTolerance)
		require.NoError(t, err)
		return pair
	}

	near := CurveLengthMeasure(diagonal(1.1))
	far := CurveLengthMeasure(diagonal(1.2))
	assert.Greater(t, near, 0.0)
	assert.Greater(t, far, near)
}

func TestMeasuresSingleSample(t *testing.T) {
	t.Parallel()

	ref := testTrack(1, pose{t: 0, x: 2, y: 3})
	cand := testTrack(1, pose{t: 0, x: 2, y: 4})
	pair, err := Align(ref, cand, DefaultTimeTolerance)
	require.NoError(t, err)

	// One sample spans no segments: no area, but the pointwise
	// measures still apply.
	assert.Zero(t, AreaBetween(pair))
	assert.Equal(t, 0.5, MAE(pair))
	assert.Greater(t, CurveLengthMeasure(pair), 0.0)
}
