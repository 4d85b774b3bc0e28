package metrics

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/scenario.report/internal/geom"
)

// Tolerances bound the acceptable disagreement between reference and
// candidate. Position and Angle apply per sample; zero demands exact
// agreement, which a self-comparison satisfies. Curve, when set,
// additionally bounds the whole-curve measures (area between curves,
// curve length measure, mean absolute error) with a single limit.
type Tolerances struct {
	Position float64
	Angle    float64
	Curve    *float64
}

// Result is the deviation profile of one aligned pair and its verdict.
// A failed tolerance never raises an error; it is reported here, with
// the first offending sample named. Whole-curve failures carry
// FailIndex -1.
type Result struct {
	ObjectID uint64
	Samples  int

	PosDev []float64 // per-sample Euclidean positional deviation
	YawDev []float64 // per-sample absolute smallest-angle yaw deviation

	MaxPosDev  float64
	MeanPosDev float64
	MaxYawDev  float64

	Area        float64
	CurveLength float64
	MAE         float64

	Tolerances Tolerances
	Pass       bool
	FailMetric string // "position", "yaw", "area", "curve_length" or "mae"
	FailIndex  int
	FailValue  float64
}

// Compare reduces an aligned pair to a Result. The positional deviation
// is commutative under swapping reference and candidate; which track is
// the reference only decides how a failure is attributed.
func Compare(pair *AlignedPair, tols Tolerances) *Result {
	n := len(pair.Ref.Samples)
	pos := make([]float64, n)
	yaw := make([]float64, n)
	for i := range pair.Ref.Samples {
		r, c := pair.Ref.Samples[i], pair.Cand.Samples[i]
		pos[i] = geom.Distance(r.Position, c.Position)
		yaw[i] = math.Abs(geom.AngleDiff(r.Orientation.Yaw, c.Orientation.Yaw))
	}

	res := &Result{
		ObjectID:    pair.Ref.ID,
		Samples:     n,
		PosDev:      pos,
		YawDev:      yaw,
		MaxPosDev:   floats.Max(pos),
		MeanPosDev:  stat.Mean(pos, nil),
		MaxYawDev:   floats.Max(yaw),
		Area:        AreaBetween(pair),
		CurveLength: CurveLengthMeasure(pair),
		MAE:         MAE(pair),
		Tolerances:  tols,
		Pass:        true,
		FailIndex:   -1,
	}

	for i := 0; i < n; i++ {
		if pos[i] > tols.Position {
			res.fail("position", i, pos[i])
			return res
		}
		if yaw[i] > tols.Angle {
			res.fail("yaw", i, yaw[i])
			return res
		}
	}
	if tols.Curve != nil {
		limit := *tols.Curve
		switch {
		case res.Area > limit:
			res.fail("area", -1, res.Area)
		case res.CurveLength > limit:
			res.fail("curve_length", -1, res.CurveLength)
		case res.MAE > limit:
			res.fail("mae", -1, res.MAE)
		}
	}
	return res
}

func (r *Result) fail(metric string, index int, value float64) {
	r.Pass = false
	r.FailMetric = metric
	r.FailIndex = index
	r.FailValue = value
}

// CompareAll runs Compare across pairs in parallel. Results keep the
// input order.
func CompareAll(ctx context.Context, pairs []*AlignedPair, tols Tolerances) ([]*Result, error) {
	results := make([]*Result, len(pairs))
	g, ctx := errgroup.WithContext(ctx)
	for i, pair := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = Compare(pair, tols)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
