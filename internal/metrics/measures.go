package metrics

import (
	"math"
	"sort"

	"github.com/banshee-data/scenario.report/internal/trajectory"
)

// Whole-curve measures on the ground-plane projection of an aligned
// pair. All three are zero when the curves coincide and carry no
// verdict of their own; Compare folds them in when a curve tolerance
// is configured.

// AreaBetween sums the quadrilateral areas spanned between matching
// segments of the two curves in the x-y plane. Where the curves cross
// inside a segment the two lobes partially cancel.
func AreaBetween(pair *AlignedPair) float64 {
	ref, cand := pair.Ref.Samples, pair.Cand.Samples
	total := 0.0
	for i := 0; i+1 < len(ref); i++ {
		total += quadArea(
			ref[i].Position.X, ref[i].Position.Y,
			ref[i+1].Position.X, ref[i+1].Position.Y,
			cand[i+1].Position.X, cand[i+1].Position.Y,
			cand[i].Position.X, cand[i].Position.Y,
		)
	}
	return total
}

// quadArea is the shoelace area of the quadrilateral a-b-c-d.
func quadArea(ax, ay, bx, by, cx, cy, dx, dy float64) float64 {
	return math.Abs((ax*by-bx*ay)+(bx*cy-cx*by)+(cx*dy-dx*cy)+(dx*ay-ax*dy)) / 2
}

// CurveLengthMeasure compares how the two curves accumulate arc length:
// the candidate is sampled at the reference's normalized arc-length
// stations and the log-scaled relative offsets fold into one scalar.
// Zero means the curves trace the same path at the same pace.
func CurveLengthMeasure(pair *AlignedPair) float64 {
	refX, refY := groundTrack(pair.Ref.Samples)
	candX, candY := groundTrack(pair.Cand.Samples)

	refCum := cumArcLength(refX, refY)
	candCum := cumArcLength(candX, candY)

	sum := 0.0
	for i := range refX {
		xt := interpAt(candCum, candX, refCum[i])
		yt := interpAt(candCum, candY, refCum[i])
		rx := math.Log(1 + math.Abs(xt-refX[i])/nonzero(math.Abs(refX[i])))
		ry := math.Log(1 + math.Abs(yt-refY[i])/nonzero(math.Abs(refY[i])))
		sum += rx*rx + ry*ry
	}
	return math.Sqrt(sum)
}

// MAE is the mean absolute error between the curves, averaged over the
// x and y components of every sample.
func MAE(pair *AlignedPair) float64 {
	ref, cand := pair.Ref.Samples, pair.Cand.Samples
	sum := 0.0
	for i := range ref {
		sum += math.Abs(ref[i].Position.X-cand[i].Position.X) +
			math.Abs(ref[i].Position.Y-cand[i].Position.Y)
	}
	return sum / float64(2*len(ref))
}

func groundTrack(samples []trajectory.Sample) (x, y []float64) {
	x = make([]float64, len(samples))
	y = make([]float64, len(samples))
	for i, s := range samples {
		x[i] = s.Position.X
		y[i] = s.Position.Y
	}
	return x, y
}

// cumArcLength is the cumulative arc length of the curve with each axis
// normalized by its largest magnitude, so differently scaled axes
// weigh equally.
func cumArcLength(x, y []float64) []float64 {
	xs := nonzero(maxAbs(x))
	ys := nonzero(maxAbs(y))
	cum := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		cum[i] = cum[i-1] + math.Hypot((x[i]-x[i-1])/xs, (y[i]-y[i-1])/ys)
	}
	return cum
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, f := range v {
		if a := math.Abs(f); a > m {
			m = a
		}
	}
	return m
}

// nonzero substitutes a tiny denominator for zero so curves through
// the origin stay finite.
func nonzero(v float64) float64 {
	if v == 0 {
		return 1e-15
	}
	return v
}

// interpAt linearly interpolates v at station t along the cumulative
// arc length cum. Stations outside the curve clamp to its endpoints.
func interpAt(cum, v []float64, t float64) float64 {
	last := len(cum) - 1
	if t <= cum[0] {
		return v[0]
	}
	if t >= cum[last] {
		return v[last]
	}
	j := sort.SearchFloat64s(cum, t)
	if cum[j] == t {
		return v[j]
	}
	frac := (t - cum[j-1]) / (cum[j] - cum[j-1])
	return v[j-1] + frac*(v[j]-v[j-1])
}
