package imaging

import (
	"fmt"
	"image"
	"strings"

	"github.com/anthonynsimon/bild/parallel"
	"gonum.org/v1/gonum/mat"
)

// FilterType selects the smoothing and derivative filters used to compute
// image gradients.
type FilterType int

const (
	// GaussianBlurSobel blurs with a Gaussian kernel then applies Sobel kernels.
	GaussianBlurSobel FilterType = iota
	// GaussianBlurScharr blurs with a Gaussian kernel then applies 3x3 Scharr kernels.
	GaussianBlurScharr
)

var filterTypeNames = map[FilterType]string{
	GaussianBlurSobel:  "gaussianblur+sobel-filtering",
	GaussianBlurScharr: "gaussianblur+scharr-filtering",
}

// String returns the configuration name of the filter type.
func (f FilterType) String() string {
	if name, ok := filterTypeNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FilterType(%d)", int(f))
}

// ParseFilterType accepts the configuration names and the short aliases
// "sobel" and "scharr", case-insensitively.
func ParseFilterType(s string) (FilterType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gaussianblur+sobel-filtering", "gaussianblur+sobel", "sobel":
		return GaussianBlurSobel, nil
	case "gaussianblur+scharr-filtering", "gaussianblur+scharr", "scharr":
		return GaussianBlurScharr, nil
	}
	return 0, fmt.Errorf("unknown filtering and gradient type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f FilterType) MarshalText() ([]byte, error) {
	name, ok := filterTypeNames[f]
	if !ok {
		return nil, fmt.Errorf("unknown filtering and gradient type %d", int(f))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FilterType) UnmarshalText(text []byte) error {
	parsed, err := ParseFilterType(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// GradientOperator computes the horizontal and vertical gradients of a gray
// image. Both outputs have one row per image row and one column per image
// column.
type GradientOperator interface {
	ComputeGradients(gray *image.Gray) (dIx, dIy *mat.Dense, err error)
}

// BlurGradient smooths an image with a separable Gaussian kernel and then
// correlates it with a Sobel or Scharr kernel. Borders are handled by
// reflection without repeating the edge pixel.
type BlurGradient struct {
	Filter     FilterType
	KernelSize int
	Stdev      float64
	Aperture   int
	// Normalize scales the derivative kernels so that a unit intensity ramp
	// yields a unit gradient.
	Normalize bool

	gaussian []float64
	kx, ky   [][]float64
}

// NewBlurGradient validates the filter settings and precomputes the kernels.
func NewBlurGradient(filter FilterType, kernelSize int, stdev float64, aperture int) (*BlurGradient, error) {
	gaussian, err := GaussianKernel(kernelSize, stdev)
	if err != nil {
		return nil, err
	}
	kx, ky, scale, err := GradientKernels(filter, aperture)
	if err != nil {
		return nil, err
	}
	scaleKernel(kx, scale)
	scaleKernel(ky, scale)

	return &BlurGradient{
		Filter:     filter,
		KernelSize: kernelSize,
		Stdev:      stdev,
		Aperture:   aperture,
		Normalize:  true,
		gaussian:   gaussian,
		kx:         kx,
		ky:         ky,
	}, nil
}

// ComputeGradients implements GradientOperator.
func (g *BlurGradient) ComputeGradients(gray *image.Gray) (*mat.Dense, *mat.Dense, error) {
	bounds := gray.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, nil, ErrEmptyImage
	}
	if g.gaussian == nil {
		built, err := NewBlurGradient(g.Filter, g.KernelSize, g.Stdev, g.Aperture)
		if err != nil {
			return nil, nil, err
		}
		g.gaussian, g.kx, g.ky = built.gaussian, built.kx, built.ky
	}

	src := make([]float64, width*height)
	for y := 0; y < height; y++ {
		off := gray.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < width; x++ {
			src[y*width+x] = float64(gray.Pix[off+x])
		}
	}

	blurred := GaussianBlur(src, width, height, g.gaussian)

	kx, ky := g.kx, g.ky
	if !g.Normalize {
		_, _, scale, err := GradientKernels(g.Filter, g.Aperture)
		if err != nil {
			return nil, nil, err
		}
		kx = scaledCopy(kx, 1/scale)
		ky = scaledCopy(ky, 1/scale)
	}

	dx := correlate(blurred, width, height, kx)
	dy := correlate(blurred, width, height, ky)
	return mat.NewDense(height, width, dx), mat.NewDense(height, width, dy), nil
}

// GaussianBlur applies the 1-D kernel along rows then along columns of a
// row-major float image.
func GaussianBlur(src []float64, width, height int, kernel []float64) []float64 {
	half := len(kernel) / 2
	tmp := make([]float64, len(src))
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			row := src[y*width : (y+1)*width]
			for x := 0; x < width; x++ {
				var sum float64
				for k, w := range kernel {
					sum += w * row[reflect101(x+k-half, width)]
				}
				tmp[y*width+x] = sum
			}
		}
	})

	dst := make([]float64, len(src))
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				var sum float64
				for k, w := range kernel {
					sum += w * tmp[reflect101(y+k-half, height)*width+x]
				}
				dst[y*width+x] = sum
			}
		}
	})
	return dst
}

func correlate(src []float64, width, height int, kernel [][]float64) []float64 {
	half := len(kernel) / 2
	dst := make([]float64, len(src))
	parallel.Line(height, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < width; x++ {
				var sum float64
				for i, krow := range kernel {
					row := reflect101(y+i-half, height) * width
					for j, w := range krow {
						if w == 0 {
							continue
						}
						sum += w * src[row+reflect101(x+j-half, width)]
					}
				}
				dst[y*width+x] = sum
			}
		}
	})
	return dst
}

func scaleKernel(k [][]float64, s float64) {
	for i := range k {
		for j := range k[i] {
			k[i][j] *= s
		}
	}
}

func scaledCopy(k [][]float64, s float64) [][]float64 {
	out := make([][]float64, len(k))
	for i := range k {
		out[i] = make([]float64, len(k[i]))
		for j := range k[i] {
			out[i][j] = k[i][j] * s
		}
	}
	return out
}
