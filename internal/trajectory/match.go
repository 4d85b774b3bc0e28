package trajectory

import (
	"fmt"

	"github.com/banshee-data/scenario.report/internal/geom"
)

// PairMode selects how reference tracks find their counterpart in a
// candidate trace.
type PairMode int

const (
	// PairByID matches tracks sharing an object identifier.
	PairByID PairMode = iota
	// PairByStart matches each reference track with the candidate
	// whose starting position lies nearest on the ground plane. Engines
	// that renumber objects make identifiers useless; start positions
	// survive.
	PairByStart
)

func (m PairMode) String() string {
	if m == PairByStart {
		return "start"
	}
	return "id"
}

// ParsePairMode resolves a pairing mode name as written in
// configuration files and flags.
func ParsePairMode(s string) (PairMode, error) {
	switch s {
	case "", "id":
		return PairByID, nil
	case "start":
		return PairByStart, nil
	}
	return PairByID, fmt.Errorf("unknown pairing mode %q", s)
}

// Pair couples a reference track with the candidate track it is
// compared against.
type Pair struct {
	Ref  *ObjectTrack
	Cand *ObjectTrack
}

// PairTracks couples every reference track with a candidate. PairByID
// fails when a reference identifier has no candidate; PairByStart
// always succeeds for non-empty candidates but may reuse one.
func PairTracks(refs, cands []*ObjectTrack, mode PairMode) ([]Pair, error) {
	if len(cands) == 0 {
		return nil, fmt.Errorf("pair tracks: no candidate tracks")
	}
	pairs := make([]Pair, 0, len(refs))
	switch mode {
	case PairByID:
		byID := make(map[uint64]*ObjectTrack, len(cands))
		for _, c := range cands {
			byID[c.ID] = c
		}
		for _, r := range refs {
			c, ok := byID[r.ID]
			if !ok {
				return nil, fmt.Errorf("pair tracks: no candidate for object %d", r.ID)
			}
			pairs = append(pairs, Pair{Ref: r, Cand: c})
		}
	case PairByStart:
		for _, r := range refs {
			pairs = append(pairs, Pair{Ref: r, Cand: ClosestByStart(r, cands)})
		}
	default:
		return nil, fmt.Errorf("pair tracks: unknown mode %d", mode)
	}
	return pairs, nil
}

// ClosestByStart returns the candidate whose first sample lies nearest
// to ref's first sample, by 2D ground distance. Returns nil when cands
// is empty.
func ClosestByStart(ref *ObjectTrack, cands []*ObjectTrack) *ObjectTrack {
	var best *ObjectTrack
	bestDist := 0.0
	start := ref.Start().Position
	for _, c := range cands {
		d := geom.Distance2D(start, c.Start().Position)
		if best == nil || d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}
