package detection

import (
	"image"
	"math"
	"sort"
)

// mergeCircles consolidates near-duplicate circle candidates.
//
// Candidates are taken by decreasing votes, ties kept in input order. The
// current representative absorbs every pending candidate whose center lies
// within CenterMinDist and whose radius differs by at most
// MergingRadiusDiffThresh, restarting its scan after each absorption since
// its center and radius move. The whole pass is repeated on its own output
// until it merges nothing, so no two returned circles satisfy both criteria.
//
// The returned circles are sorted by decreasing votes.
func mergeCircles(candidates []Circle, p Params, bounds image.Rectangle) []Circle {
	merged := make([]Circle, len(candidates))
	copy(merged, candidates)
	for {
		var changed bool
		merged, changed = mergePass(merged, p, bounds)
		if !changed {
			break
		}
	}
	sortByVotes(merged)
	return merged
}

func mergePass(candidates []Circle, p Params, bounds image.Rectangle) ([]Circle, bool) {
	pending := make([]Circle, len(candidates))
	copy(pending, candidates)
	sortByVotes(pending)

	out := make([]Circle, 0, len(pending))
	changed := false
	for len(pending) > 0 {
		rep := pending[0]
		pending = pending[1:]

		for {
			absorbed := false
			for j, other := range pending {
				if !similar(rep, other, p) {
					continue
				}
				rep = combine(rep, other, bounds)
				pending = append(pending[:j], pending[j+1:]...)
				absorbed = true
				changed = true
				break
			}
			if !absorbed {
				break
			}
		}
		out = append(out, rep)
	}
	return out, changed
}

func similar(a, b Circle, p Params) bool {
	return a.Center.Sub(b.Center).Norm() <= p.CenterMinDist &&
		math.Abs(a.Radius-b.Radius) <= p.MergingRadiusDiffThresh
}

// combine returns the vote-weighted average of two circles. The probability is
// recomputed for the merged geometry.
func combine(a, b Circle, bounds image.Rectangle) Circle {
	wa, wb := float64(a.Votes), float64(b.Votes)
	if wa+wb == 0 {
		wa, wb = 1, 1
	}
	total := wa + wb

	merged := Circle{
		Center: a.Center.Mul(wa / total).Add(b.Center.Mul(wb / total)),
		Radius: (a.Radius*wa + b.Radius*wb) / total,
		Votes:  a.Votes + b.Votes,
	}
	merged.Probability = probability(merged.Votes, merged.Center, merged.Radius, bounds)
	return merged
}

func sortByVotes(circles []Circle) {
	sort.SliceStable(circles, func(i, j int) bool {
		return circles[i].Votes > circles[j].Votes
	})
}
