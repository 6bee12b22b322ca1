package detection

import "errors"

var (
	// ErrInvalidConfig is wrapped by every parameter validation failure.
	ErrInvalidConfig = errors.New("invalid circle hough transform configuration")

	// ErrGradientMismatch is returned when caller supplied gradient images are
	// missing or differ in size.
	ErrGradientMismatch = errors.New("gradient images are missing or differ in size")
)
