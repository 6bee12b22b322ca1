package detection

import (
	"image"

	"github.com/anthonynsimon/bild/parallel"
	"gonum.org/v1/gonum/mat"
)

// edgeSample is an edge point together with its gradient.
type edgeSample struct {
	X, Y   int
	Gx, Gy float64
}

// filterEdgeMap removes edge pixels that have no edge pixel among their 8
// neighbors, nbIter times. Each pass reads the previous pass's map and writes
// a fresh one, so removals never cascade within a pass. The input is not
// modified.
func filterEdgeMap(edges *image.Gray, nbIter int) *image.Gray {
	bounds := edges.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	current := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		off := edges.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		copy(current.Pix[y*current.Stride:y*current.Stride+width], edges.Pix[off:off+width])
	}

	for iter := 0; iter < nbIter; iter++ {
		next := image.NewGray(current.Rect)
		parallel.Line(height, func(start, end int) {
			for y := start; y < end; y++ {
				for x := 0; x < width; x++ {
					if current.Pix[y*current.Stride+x] == 0 {
						continue
					}
					if hasEdgeNeighbor(current, x, y, width, height) {
						next.Pix[y*next.Stride+x] = 255
					}
				}
			}
		})
		current = next
	}
	return current
}

func hasEdgeNeighbor(edges *image.Gray, x, y, width, height int) bool {
	for ny := y - 1; ny <= y+1; ny++ {
		if ny < 0 || ny >= height {
			continue
		}
		for nx := x - 1; nx <= x+1; nx++ {
			if nx < 0 || nx >= width || (nx == x && ny == y) {
				continue
			}
			if edges.Pix[ny*edges.Stride+nx] != 0 {
				return true
			}
		}
	}
	return false
}

// collectEdgePoints lists the edge pixels in row-major order along with their
// gradients.
func collectEdgePoints(edges *image.Gray, dIx, dIy *mat.Dense) []edgeSample {
	bounds := edges.Bounds()
	samples := make([]edgeSample, 0)
	for y := 0; y < bounds.Dy(); y++ {
		off := edges.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < bounds.Dx(); x++ {
			if edges.Pix[off+x] == 0 {
				continue
			}
			samples = append(samples, edgeSample{X: x, Y: y, Gx: dIx.At(y, x), Gy: dIy.At(y, x)})
		}
	}
	return samples
}
