package detection

import (
	"math"

	"github.com/anthonynsimon/bild/parallel"
	"github.com/golang/geo/r2"
)

const (
	// lineFitGate is the largest distance, in pixels, between a center
	// estimate and the gradient line of an edge point taking part in the fit.
	lineFitGate = 3.0
	// lineFitMinLines is the number of gradient lines below which the
	// centroid is kept as is.
	lineFitMinLines = 8
	// lineFitIterations bounds the number of gate-then-solve rounds.
	lineFitIterations = 2
)

// refineCenters returns a sub-pixel position for every center candidate, in
// the same order.
//
// The start point is the vote-weighted centroid of the 3x3 accumulator window
// around the peak. It is then moved to the point closest, in the least squares
// sense, to the gradient lines of the edge points passing within lineFitGate
// of it at a distance inside the radius limits. A fit that is ill-conditioned
// or lands farther than lineFitGate keeps the previous estimate.
func refineCenters(acc *centerAccumulator, candidates []CenterCandidate, edges []edgeSample, p Params) []r2.Point {
	refined := make([]r2.Point, len(candidates))
	parallel.Line(len(candidates), func(start, end int) {
		for i := start; i < end; i++ {
			c := acc.centroid(candidates[i])
			for iter := 0; iter < lineFitIterations; iter++ {
				fitted, ok := fitGradientLines(c, edges, p)
				if !ok {
					break
				}
				c = fitted
			}
			refined[i] = c
		}
	})
	return refined
}

// centroid returns the vote-weighted mean position of the 3x3 window centered
// on the candidate.
func (a *centerAccumulator) centroid(c CenterCandidate) r2.Point {
	var sum, sx, sy float64
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			v := float64(a.at(c.Col+dx, c.Row+dy))
			sum += v
			sx += v * float64(c.Col+dx)
			sy += v * float64(c.Row+dy)
		}
	}
	if sum == 0 {
		return c.Point()
	}
	return r2.Point{X: sx / sum, Y: sy / sum}
}

// fitGradientLines solves for the point minimizing the sum of squared
// distances to the selected gradient lines. With n the unit normal of a line
// through edge point e, the normal equations are
//
//	sum(n n^T) c = sum(n n^T e)
func fitGradientLines(c r2.Point, edges []edgeSample, p Params) (r2.Point, bool) {
	var a11, a12, a22, b1, b2 float64
	lines := 0
	for _, e := range edges {
		g := math.Hypot(e.Gx, e.Gy)
		if g < minGradientNorm {
			continue
		}
		ux, uy := e.Gx/g, e.Gy/g
		rx, ry := c.X-float64(e.X), c.Y-float64(e.Y)
		d := math.Hypot(rx, ry)
		if d == 0 || d < p.MinRadius || d > p.MaxRadius {
			continue
		}
		nx, ny := -uy, ux
		if math.Abs(rx*nx+ry*ny) > lineFitGate {
			continue
		}
		k := nx*float64(e.X) + ny*float64(e.Y)
		a11 += nx * nx
		a12 += nx * ny
		a22 += ny * ny
		b1 += nx * k
		b2 += ny * k
		lines++
	}
	if lines < lineFitMinLines {
		return c, false
	}

	// Lines all sharing one direction leave the center unconstrained along it.
	det := a11*a22 - a12*a12
	if det <= 0.01*float64(lines*lines) {
		return c, false
	}
	fitted := r2.Point{X: (a22*b1 - a12*b2) / det, Y: (a11*b2 - a12*b1) / det}
	if fitted.Sub(c).Norm() > lineFitGate {
		return c, false
	}
	return fitted, true
}
