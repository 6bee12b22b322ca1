package detection

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/golang/geo/r2"
)

// voteRadii builds, for every center, a histogram of the distances
// to the edge points whose gradient is aligned with the radial direction, and
// keeps the radius bins whose votes per pixel of visible arc reach the
// probability threshold.
//
// The alignment test ignores the gradient sign so that bright circles on a
// dark background and dark circles on a bright background both vote. The
// output lists candidates by center in input order, radius ascending.
func voteRadii(centers []r2.Point, edges []edgeSample, p Params, bounds image.Rectangle) []Circle {
	if len(centers) == 0 || len(edges) == 0 {
		return []Circle{}
	}

	maxBin := int(math.Round(p.MaxRadius))
	if diag := int(math.Ceil(math.Hypot(float64(bounds.Dx()), float64(bounds.Dy())))); maxBin > diag {
		maxBin = diag
	}
	perf2 := p.CirclePerfectness * p.CirclePerfectness

	perCenter := make([][]Circle, len(centers))
	parallel.Line(len(centers), func(start, end int) {
		hist := make([]int, maxBin+1)
		for i := start; i < end; i++ {
			for b := range hist {
				hist[b] = 0
			}
			center := centers[i]
			for _, e := range edges {
				rx := float64(e.X) - center.X
				ry := float64(e.Y) - center.Y
				d2 := rx*rx + ry*ry
				d := math.Sqrt(d2)
				if d < p.MinRadius || d > p.MaxRadius {
					continue
				}
				g2 := e.Gx*e.Gx + e.Gy*e.Gy
				if g2 < minGradientNorm*minGradientNorm {
					continue
				}
				dot := rx*e.Gx + ry*e.Gy
				if dot*dot < perf2*d2*g2 {
					continue
				}
				bin := int(math.Round(d))
				if bin == 0 || bin > maxBin {
					continue
				}
				hist[bin]++
			}

			var found []Circle
			for bin, votes := range hist {
				if votes == 0 {
					continue
				}
				radius := float64(bin)
				if radius < p.MinRadius || radius > p.MaxRadius {
					continue
				}
				proba := probability(votes, center, radius, bounds)
				if proba <= 0 || proba < p.CircleProbaThresh {
					continue
				}
				found = append(found, Circle{Center: center, Radius: radius, Votes: votes, Probability: proba})
			}
			perCenter[i] = found
		}
	})

	circles := make([]Circle, 0)
	for _, found := range perCenter {
		circles = append(circles, found...)
	}
	return circles
}
