package routing

import (
	"sort"
	"time"

	"github.com/paulmach/orb"
)

// Candidate is one complete route proposed by an external routing service.
type Candidate struct {
	Geometry    orb.LineString // lon/lat order
	DurationS   float64
	DistanceM   float64
	Risk        float64
	BlendedCost float64
	Label       string
}

// RankOptions sets how a candidate's duration and risk are blended. The
// duration is expressed in TimeUnit before RiskWeight is added, so the two
// must be calibrated together.
type RankOptions struct {
	RiskWeight float64
	TimeUnit   time.Duration
}

// RankCandidates computes BlendedCost for each candidate and returns them
// sorted ascending. Ties keep provider order. The input is not modified.
func RankCandidates(cands []Candidate, opts RankOptions) []Candidate {
	unit := opts.TimeUnit.Seconds()
	if unit <= 0 {
		unit = 1
	}

	out := make([]Candidate, len(cands))
	copy(out, cands)
	for i := range out {
		out[i].BlendedCost = out[i].DurationS/unit + out[i].Risk*opts.RiskWeight
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BlendedCost < out[j].BlendedCost
	})
	return out
}
