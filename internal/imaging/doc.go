// Package imaging provides the low-level image operations the circle detector
// is built on.
//
// This package loads and caches images, converts them to 8-bit gray, computes
// floating-point gradients (Gaussian blur followed by Sobel or Scharr
// correlation), turns gradients into binary edge maps with a Canny-style
// hysteresis detector and renders detected circles over images.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel), the column of a gradient matrix
//   - Y: vertical position (0 = topmost pixel), the row of a gradient matrix
//
// Gradient images are gonum *mat.Dense values with one row per image row.
// A positive horizontal gradient means intensity grows to the right, a
// positive vertical gradient means it grows downward.
//
// # Backends
//
// Gradient computation and edge detection sit behind the GradientOperator and
// EdgeDetector interfaces so callers can substitute their own implementations.
// FilterType and EdgeBackend name the built-in variants and marshal to the
// names used in configuration files.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. BlurGradient may be shared
// once built. A Canny value records the thresholds of its last run and must
// not be shared between goroutines.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Even or non-positive kernel sizes, non-positive standard deviations
//   - Apertures a filter does not support
//   - Empty images and mismatched gradient sizes
//   - File I/O errors during image loading
package imaging
