// Package metrics verifies that a reference and a candidate trajectory
// share a time base and reduces their differences to deviation profiles
// and pass/fail verdicts. Every function here is a pure function of its
// inputs, so comparisons for independent object pairs can run
// concurrently.
package metrics

import (
	"fmt"
	"math"

	"github.com/banshee-data/scenario.report/internal/trajectory"
)

// DefaultTimeTolerance bounds how far matching sample timestamps may
// disagree while still counting as a shared time base.
const DefaultTimeTolerance = 1e-6

// AlignmentError reports two traces that cannot be compared: their
// sample counts differ or their timestamps diverge beyond tolerance.
// Index is the first mismatched sample, or -1 for a length mismatch.
type AlignmentError struct {
	ObjectID uint64
	Index    int
	RefLen   int
	CandLen  int
	RefTime  float64
	CandTime float64
}

func (e *AlignmentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("object %d: cannot align: reference has %d samples, candidate %d",
			e.ObjectID, e.RefLen, e.CandLen)
	}
	return fmt.Sprintf("object %d: cannot align: timestamps diverge at index %d (reference %v, candidate %v)",
		e.ObjectID, e.Index, e.RefTime, e.CandTime)
}

// AlignedPair is a reference and candidate track verified to share a
// time base: equal length, timestamps matched pairwise within
// tolerance, at least one sample each.
type AlignedPair struct {
	Ref  *trajectory.ObjectTrack
	Cand *trajectory.ObjectTrack
}

// Align checks that ref and cand share a time base. It never resamples
// and never truncates: both traces must already run at the same frame
// rate over the same window, which the caller arranges (for example by
// cropping the reference before handing it to the tool under test).
// A non-positive tol selects DefaultTimeTolerance.
func Align(ref, cand *trajectory.ObjectTrack, tol float64) (*AlignedPair, error) {
	if tol <= 0 {
		tol = DefaultTimeTolerance
	}
	if len(ref.Samples) != len(cand.Samples) || len(ref.Samples) == 0 {
		return nil, &AlignmentError{
			ObjectID: ref.ID,
			Index:    -1,
			RefLen:   len(ref.Samples),
			CandLen:  len(cand.Samples),
		}
	}
	for i := range ref.Samples {
		rt, ct := ref.Samples[i].T, cand.Samples[i].T
		if math.Abs(rt-ct) > tol {
			return nil, &AlignmentError{
				ObjectID: ref.ID,
				Index:    i,
				RefLen:   len(ref.Samples),
				CandLen:  len(cand.Samples),
				RefTime:  rt,
				CandTime: ct,
			}
		}
	}
	return &AlignedPair{Ref: ref, Cand: cand}, nil
}
