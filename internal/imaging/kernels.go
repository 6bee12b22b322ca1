package imaging

import (
	"fmt"
	"math"
)

// MaxSobelAperture is the largest Sobel kernel size GradientKernels builds.
const MaxSobelAperture = 41

// GaussianKernel returns a normalized 1-D Gaussian kernel of the given size.
//
// The size must be odd and positive and stdev strictly positive. The kernel is
// symmetric around its center element and sums to 1.
func GaussianKernel(size int, stdev float64) ([]float64, error) {
	if size <= 0 || size%2 == 0 {
		return nil, fmt.Errorf("gaussian kernel size must be odd and positive, got %d", size)
	}
	if stdev <= 0 || math.IsNaN(stdev) || math.IsInf(stdev, 0) {
		return nil, fmt.Errorf("gaussian standard deviation must be positive, got %g", stdev)
	}

	kernel := make([]float64, size)
	half := size / 2
	var sum float64
	for i := range kernel {
		d := float64(i - half)
		kernel[i] = math.Exp(-d * d / (2 * stdev * stdev))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel, nil
}

// GradientKernels returns the horizontal and vertical derivative kernels of the
// given filter and aperture, plus the factor that makes them return a slope of
// one on a unit intensity ramp.
//
// Kernels are meant for correlation: kx[i][j] weights the pixel at row offset
// i-a/2 and column offset j-a/2. The vertical kernel responds positively when
// intensity grows with the row index.
func GradientKernels(filter FilterType, aperture int) (kx, ky [][]float64, scale float64, err error) {
	if aperture <= 0 || aperture%2 == 0 {
		return nil, nil, 0, fmt.Errorf("gradient filter aperture must be odd and positive, got %d", aperture)
	}

	switch filter {
	case GaussianBlurScharr:
		if aperture != 3 {
			return nil, nil, 0, fmt.Errorf("scharr filter only supports an aperture of 3, got %d", aperture)
		}
		ky = [][]float64{
			{-3, -10, -3},
			{0, 0, 0},
			{3, 10, 3},
		}
		scale = 1.0 / 32.0
	case GaussianBlurSobel:
		if aperture > MaxSobelAperture {
			return nil, nil, 0, fmt.Errorf("sobel aperture must be at most %d, got %d", MaxSobelAperture, aperture)
		}
		ky, scale = sobelY(aperture)
	default:
		return nil, nil, 0, fmt.Errorf("unsupported filter type %d", filter)
	}

	return transpose(ky), ky, scale, nil
}

// sobelY grows the 3x3 Sobel kernel by repeated full convolution with the
// binomial smoothing kernel until it reaches the requested aperture.
func sobelY(aperture int) ([][]float64, float64) {
	kernel := [][]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
	scale := 1.0 / 8.0
	smooth := [][]float64{
		{1, 2, 1},
		{2, 4, 2},
		{1, 2, 1},
	}
	for len(kernel) < aperture {
		kernel = convolveFull(kernel, smooth)
		scale /= 16.0
	}
	return kernel, scale
}

func convolveFull(a, b [][]float64) [][]float64 {
	n := len(a) + len(b) - 1
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	for i := range a {
		for j := range a[i] {
			if a[i][j] == 0 {
				continue
			}
			for k := range b {
				for l := range b[k] {
					out[i+k][j+l] += a[i][j] * b[k][l]
				}
			}
		}
	}
	return out
}

func transpose(k [][]float64) [][]float64 {
	out := make([][]float64, len(k))
	for i := range out {
		out[i] = make([]float64, len(k))
		for j := range out[i] {
			out[i][j] = k[j][i]
		}
	}
	return out
}

// reflect101 maps an out-of-range index back into [0, n) mirroring around the
// border pixels without repeating them (gfedcb|abcdefgh|gfedcba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}
