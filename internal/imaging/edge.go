package imaging

import (
	"fmt"
	"image"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// EdgeBackend selects the edge detection algorithm run on the gradients.
type EdgeBackend int

const (
	// CannyBackend thins edges by non-maximum suppression before hysteresis.
	CannyBackend EdgeBackend = iota
	// HysteresisBackend applies hysteresis thresholding directly on the
	// gradient magnitude, keeping thick edges.
	HysteresisBackend
)

var edgeBackendNames = map[EdgeBackend]string{
	CannyBackend:      "canny-backend",
	HysteresisBackend: "hysteresis-backend",
}

// String returns the configuration name of the backend.
func (b EdgeBackend) String() string {
	if name, ok := edgeBackendNames[b]; ok {
		return name
	}
	return fmt.Sprintf("EdgeBackend(%d)", int(b))
}

// ParseEdgeBackend accepts the configuration names. The historical names
// "visp-backend" and "opencv-backend" both select the Canny backend.
func ParseEdgeBackend(s string) (EdgeBackend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "canny-backend", "canny", "visp-backend", "opencv-backend":
		return CannyBackend, nil
	case "hysteresis-backend", "hysteresis":
		return HysteresisBackend, nil
	}
	return 0, fmt.Errorf("unknown edge detection backend %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (b EdgeBackend) MarshalText() ([]byte, error) {
	name, ok := edgeBackendNames[b]
	if !ok {
		return nil, fmt.Errorf("unknown edge detection backend %d", int(b))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *EdgeBackend) UnmarshalText(text []byte) error {
	parsed, err := ParseEdgeBackend(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// EdgeDetector turns gradient images into a binary edge map where edge
// pixels are 255 and all other pixels are 0.
type EdgeDetector interface {
	DetectEdges(dIx, dIy *mat.Dense) (*image.Gray, error)
}

// Canny is a hysteresis edge detector working on the L1 gradient magnitude
// |dIx|+|dIy|.
//
// When Lower or Upper is negative, both thresholds are derived from the
// gradient histogram with AutoCannyThresholds on every call.
//
// # Algorithm
//
//  1. Magnitude: |dIx| + |dIy| for every pixel
//
//  2. Non-maximum suppression (when Thin is set): a pixel survives only if its
//     magnitude is strictly greater than the neighbor behind it along the
//     gradient direction and not smaller than the one ahead. The direction is
//     quantized into four sectors.
//
//  3. Hysteresis thresholding:
//     - Pixels above Upper are strong edges (always kept)
//     - Non-zero pixels at or above Lower are weak edges, kept only when they
//     are 8-connected, possibly through other weak edges, to a strong edge
//     - Everything else is discarded
//
// The one pixel wide image border is never marked as an edge.
type Canny struct {
	Lower      float64
	Upper      float64
	LowerRatio float64
	UpperRatio float64
	Thin       bool

	lastLower float64
	lastUpper float64
}

// NewEdgeDetector builds the detector matching the backend.
func NewEdgeDetector(backend EdgeBackend, lower, upper, lowerRatio, upperRatio float64) (*Canny, error) {
	switch backend {
	case CannyBackend, HysteresisBackend:
	default:
		return nil, fmt.Errorf("unsupported edge backend %d", backend)
	}
	return &Canny{
		Lower:      lower,
		Upper:      upper,
		LowerRatio: lowerRatio,
		UpperRatio: upperRatio,
		Thin:       backend == CannyBackend,
	}, nil
}

// Thresholds reports the lower and upper thresholds used by the last call to
// DetectEdges.
func (c *Canny) Thresholds() (lower, upper float64) {
	return c.lastLower, c.lastUpper
}

// DetectEdges implements EdgeDetector.
func (c *Canny) DetectEdges(dIx, dIy *mat.Dense) (*image.Gray, error) {
	if dIx == nil || dIy == nil {
		return nil, fmt.Errorf("gradient images are required")
	}
	height, width := dIx.Dims()
	if h, w := dIy.Dims(); h != height || w != width {
		return nil, fmt.Errorf("gradient sizes differ: %dx%d vs %dx%d", width, height, w, h)
	}

	lower, upper := c.Lower, c.Upper
	if lower < 0 || upper < 0 {
		lower, upper = AutoCannyThresholds(dIx, dIy, c.LowerRatio, c.UpperRatio)
	}
	c.lastLower, c.lastUpper = lower, upper

	magnitude := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			magnitude[y*width+x] = math.Abs(dIx.At(y, x)) + math.Abs(dIy.At(y, x))
		}
	}

	candidate := magnitude
	if c.Thin {
		candidate = suppressNonMaxima(dIx, dIy, magnitude, width, height)
	}

	return hysteresis(candidate, width, height, lower, upper), nil
}

// AutoCannyThresholds derives hysteresis thresholds from a 256 bin histogram of
// the L1 gradient magnitude clamped to [0,255].
//
// The upper threshold is the first bin at which the cumulative count exceeds
// upperRatio*width*height, never below 1. The lower threshold is
// lowerRatio*upper.
func AutoCannyThresholds(dIx, dIy *mat.Dense, lowerRatio, upperRatio float64) (lower, upper float64) {
	height, width := dIx.Dims()
	var hist [256]int
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m := math.Abs(dIx.At(y, x)) + math.Abs(dIy.At(y, x))
			bin := 255
			if m < 255 {
				bin = int(m)
			}
			hist[bin]++
		}
	}

	limit := upperRatio * float64(width*height)
	upperBin := 255
	cumulative := 0
	for bin, count := range hist {
		cumulative += count
		if float64(cumulative) > limit {
			upperBin = bin
			break
		}
	}
	upper = math.Max(float64(upperBin), 1)
	return lowerRatio * upper, upper
}

func suppressNonMaxima(dIx, dIy *mat.Dense, magnitude []float64, width, height int) []float64 {
	suppressed := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			mag := magnitude[y*width+x]
			if mag == 0 {
				continue
			}

			// Offsets of the neighbor ahead along the gradient; rows grow downward.
			angle := math.Atan2(dIy.At(y, x), dIx.At(y, x))
			if angle < 0 {
				angle += math.Pi
			}
			var ox, oy int
			switch {
			case angle < math.Pi/8 || angle >= 7*math.Pi/8:
				ox, oy = 1, 0
			case angle < 3*math.Pi/8:
				ox, oy = 1, 1
			case angle < 5*math.Pi/8:
				ox, oy = 0, 1
			default:
				ox, oy = -1, 1
			}

			ahead := magnitude[(y+oy)*width+x+ox]
			behind := magnitude[(y-oy)*width+x-ox]
			if mag > behind && mag >= ahead {
				suppressed[y*width+x] = mag
			}
		}
	}
	return suppressed
}

func hysteresis(magnitude []float64, width, height int, lower, upper float64) *image.Gray {
	edges := image.NewGray(image.Rect(0, 0, width, height))
	stack := make([]int, 0, 64)

	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			idx := y*width + x
			if magnitude[idx] > upper && edges.Pix[y*edges.Stride+x] == 0 {
				edges.Pix[y*edges.Stride+x] = 255
				stack = append(stack, idx)
			}
		}
	}

	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cy := idx%width, idx/width
		for ny := cy - 1; ny <= cy+1; ny++ {
			for nx := cx - 1; nx <= cx+1; nx++ {
				if nx < 1 || ny < 1 || nx >= width-1 || ny >= height-1 {
					continue
				}
				if edges.Pix[ny*edges.Stride+nx] != 0 {
					continue
				}
				m := magnitude[ny*width+nx]
				if m > 0 && m >= lower {
					edges.Pix[ny*edges.Stride+nx] = 255
					stack = append(stack, ny*width+nx)
				}
			}
		}
	}
	return edges
}

// CountEdges returns the number of non-zero pixels of an edge map.
func CountEdges(edges *image.Gray) int {
	if edges == nil {
		return 0
	}
	bounds := edges.Bounds()
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		off := edges.PixOffset(bounds.Min.X, y)
		for _, v := range edges.Pix[off : off+bounds.Dx()] {
			if v != 0 {
				count++
			}
		}
	}
	return count
}
