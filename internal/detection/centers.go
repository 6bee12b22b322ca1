package detection

import (
	"image"
	"math"
	"sync"

	"github.com/anthonynsimon/bild/parallel"
)

// minGradientNorm is the gradient magnitude under which an edge point has no
// usable direction.
const minGradientNorm = 1e-6

// centerAccumulator counts center votes over the part of the image where
// centers are allowed.
type centerAccumulator struct {
	box   image.Rectangle
	votes []int32
}

// centerSearchBox intersects the image with the configured center limits.
func centerSearchBox(p Params, width, height int) image.Rectangle {
	x0 := max(0, p.CenterXLimits[0])
	x1 := min(width-1, p.CenterXLimits[1])
	y0 := max(0, p.CenterYLimits[0])
	y1 := min(height-1, p.CenterYLimits[1])
	if x0 > x1 || y0 > y1 {
		return image.Rectangle{}
	}
	return image.Rect(x0, y0, x1+1, y1+1)
}

// voteCenters casts, for every edge point, one vote per radius step on both
// sides of the point along its gradient direction.
//
// A ray stops at the first step leaving the image. Consecutive steps rounding
// to the same pixel vote once, and a zero radius votes once. Edge points are
// split across goroutines with private accumulators whose sums are exact.
func voteCenters(edges []edgeSample, p Params, width, height int) *centerAccumulator {
	box := centerSearchBox(p, width, height)
	acc := &centerAccumulator{box: box, votes: make([]int32, box.Dx()*box.Dy())}
	if len(acc.votes) == 0 || len(edges) == 0 {
		return acc
	}

	var mu sync.Mutex
	parallel.Line(len(edges), func(start, end int) {
		local := make([]int32, len(acc.votes))
		for _, e := range edges[start:end] {
			castCenterVotes(local, box, e, p, width, height)
		}
		mu.Lock()
		for i, v := range local {
			acc.votes[i] += v
		}
		mu.Unlock()
	})
	return acc
}

func castCenterVotes(votes []int32, box image.Rectangle, e edgeSample, p Params, width, height int) {
	norm := math.Hypot(e.Gx, e.Gy)
	if norm < minGradientNorm {
		return
	}
	ux, uy := e.Gx/norm, e.Gy/norm
	boxWidth := box.Dx()

	for _, sign := range [2]float64{1, -1} {
		prev := image.Pt(-1, -1)
		for rad := p.MinRadius; rad <= p.MaxRadius; rad++ {
			if sign < 0 && rad == 0 {
				continue
			}
			cx := int(math.Round(float64(e.X) + sign*rad*ux))
			cy := int(math.Round(float64(e.Y) + sign*rad*uy))
			if cx < 0 || cy < 0 || cx >= width || cy >= height {
				break
			}
			cur := image.Pt(cx, cy)
			if cur == prev {
				continue
			}
			prev = cur
			if !cur.In(box) {
				continue
			}
			votes[(cy-box.Min.Y)*boxWidth+cx-box.Min.X]++
		}
	}
}

// dilate runs a 3x3 grayscale dilation nbIter times and returns the result.
// The window is clipped at the accumulator border.
func (a *centerAccumulator) dilate(nbIter int) []int32 {
	width, height := a.box.Dx(), a.box.Dy()
	current := make([]int32, len(a.votes))
	copy(current, a.votes)
	if width == 0 || height == 0 {
		return current
	}

	tmp := make([]int32, len(current))
	for iter := 0; iter < nbIter; iter++ {
		// Rows then columns, a square max filter is separable.
		for y := 0; y < height; y++ {
			row := current[y*width : (y+1)*width]
			for x := 0; x < width; x++ {
				m := row[x]
				if x > 0 && row[x-1] > m {
					m = row[x-1]
				}
				if x < width-1 && row[x+1] > m {
					m = row[x+1]
				}
				tmp[y*width+x] = m
			}
		}
		next := make([]int32, len(current))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				m := tmp[y*width+x]
				if y > 0 && tmp[(y-1)*width+x] > m {
					m = tmp[(y-1)*width+x]
				}
				if y < height-1 && tmp[(y+1)*width+x] > m {
					m = tmp[(y+1)*width+x]
				}
				next[y*width+x] = m
			}
		}
		current = next
	}
	return current
}

// candidates returns the cells whose votes equal their dilated value and
// exceed thresh, in row-major order.
func (a *centerAccumulator) candidates(dilated []int32, thresh float64) []CenterCandidate {
	width := a.box.Dx()
	found := make([]CenterCandidate, 0)
	for i, v := range a.votes {
		if v != dilated[i] || float64(v) <= thresh {
			continue
		}
		found = append(found, CenterCandidate{
			Row:   a.box.Min.Y + i/width,
			Col:   a.box.Min.X + i%width,
			Votes: int(v),
		})
	}
	return found
}

// at returns the votes of an image pixel, 0 outside the search box.
func (a *centerAccumulator) at(x, y int) int {
	if !image.Pt(x, y).In(a.box) {
		return 0
	}
	return int(a.votes[(y-a.box.Min.Y)*a.box.Dx()+x-a.box.Min.X])
}
