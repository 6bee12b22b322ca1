package detection

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/ironsheep/hough-circles-mcp/internal/imaging"
)

// Unbounded center limits.
const (
	NoLowerLimit = math.MinInt32
	NoUpperLimit = math.MaxInt32
)

// Params configures every stage of the circle Hough transform.
//
// Params is a plain value: the detector keeps its own copy and stages only
// read it. Use DefaultParams and the With* helpers, or ParseParams for JSON
// documents.
type Params struct {
	// Gradient computation
	FilteringAndGradient     imaging.FilterType
	GaussianKernelSize       int
	GaussianStdev            float64
	GradientFilterKernelSize int

	// Edge detection. Negative Canny thresholds ask for automatic thresholds
	// computed with the two ratios.
	EdgeBackend           imaging.EdgeBackend
	LowerCannyThresh      float64
	UpperCannyThresh      float64
	LowerCannyThreshRatio float64
	UpperCannyThreshRatio float64

	EdgeMapFilteringNbIter int

	// Center search area, inclusive pixel bounds along x (columns) and y (rows).
	CenterXLimits [2]int
	CenterYLimits [2]int

	MinRadius float64
	MaxRadius float64

	// Center candidates
	DilatationNbIter int
	CenterThresh     float64

	// Circle candidates
	CircleProbaThresh float64
	CirclePerfectness float64

	// Merging
	CenterMinDist           float64
	MergingRadiusDiffThresh float64
}

// DefaultParams returns the default configuration.
func DefaultParams() Params {
	return Params{
		FilteringAndGradient:     imaging.GaussianBlurSobel,
		GaussianKernelSize:       5,
		GaussianStdev:            1.0,
		GradientFilterKernelSize: 3,
		EdgeBackend:              imaging.CannyBackend,
		LowerCannyThresh:         -1,
		UpperCannyThresh:         -1,
		LowerCannyThreshRatio:    0.6,
		UpperCannyThreshRatio:    0.8,
		EdgeMapFilteringNbIter:   1,
		CenterXLimits:            [2]int{NoLowerLimit, NoUpperLimit},
		CenterYLimits:            [2]int{NoLowerLimit, NoUpperLimit},
		MinRadius:                0,
		MaxRadius:                1000,
		DilatationNbIter:         1,
		CenterThresh:             50,
		CircleProbaThresh:        0.9,
		CirclePerfectness:        0.9,
		CenterMinDist:            15,
		MergingRadiusDiffThresh:  1.5 * 15,
	}
}

// WithRadiusLimits returns a copy with the radius range set.
func (p Params) WithRadiusLimits(minRadius, maxRadius float64) Params {
	p.MinRadius, p.MaxRadius = minRadius, maxRadius
	return p.Normalize()
}

// WithCenterLimits returns a copy with the center search box set.
func (p Params) WithCenterLimits(xmin, xmax, ymin, ymax int) Params {
	p.CenterXLimits = [2]int{xmin, xmax}
	p.CenterYLimits = [2]int{ymin, ymax}
	return p
}

// WithCenterThresh returns a copy with the center vote threshold set.
func (p Params) WithCenterThresh(thresh float64) Params {
	p.CenterThresh = thresh
	return p
}

// WithCircleProbaThresh returns a copy with the circle probability threshold set.
func (p Params) WithCircleProbaThresh(thresh float64) Params {
	p.CircleProbaThresh = thresh
	return p
}

// Normalize returns a copy whose radius limits are ordered.
func (p Params) Normalize() Params {
	if p.MinRadius > p.MaxRadius {
		p.MinRadius, p.MaxRadius = p.MaxRadius, p.MinRadius
	}
	return p
}

// Validate reports every invalid field. Each reported error wraps
// ErrInvalidConfig. Misordered radius limits are not an error, Normalize
// orders them.
func (p Params) Validate() error {
	var err error
	add := func(format string, args ...interface{}) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfig}, args...)...))
	}

	if _, e := p.FilteringAndGradient.MarshalText(); e != nil {
		add("%v", e)
	} else if _, _, _, e := imaging.GradientKernels(p.FilteringAndGradient, p.GradientFilterKernelSize); e != nil {
		add("%v", e)
	}
	if _, e := imaging.GaussianKernel(p.GaussianKernelSize, p.GaussianStdev); e != nil {
		add("%v", e)
	}

	if _, e := p.EdgeBackend.MarshalText(); e != nil {
		add("%v", e)
	}
	if !isFinite(p.LowerCannyThresh) || !isFinite(p.UpperCannyThresh) {
		add("canny thresholds must be finite, got [%g, %g]", p.LowerCannyThresh, p.UpperCannyThresh)
	} else if p.LowerCannyThresh >= 0 && p.UpperCannyThresh >= 0 && p.LowerCannyThresh > p.UpperCannyThresh {
		add("lower canny threshold %g is above the upper one %g", p.LowerCannyThresh, p.UpperCannyThresh)
	}
	if !inUnitInterval(p.LowerCannyThreshRatio) {
		add("lower canny threshold ratio must be in (0, 1], got %g", p.LowerCannyThreshRatio)
	}
	if !inUnitInterval(p.UpperCannyThreshRatio) {
		add("upper canny threshold ratio must be in (0, 1], got %g", p.UpperCannyThreshRatio)
	}
	if p.EdgeMapFilteringNbIter < 0 {
		add("edge map filtering iterations must not be negative, got %d", p.EdgeMapFilteringNbIter)
	}

	if p.CenterXLimits[0] > p.CenterXLimits[1] {
		add("center x limits are inverted: [%d, %d]", p.CenterXLimits[0], p.CenterXLimits[1])
	}
	if p.CenterYLimits[0] > p.CenterYLimits[1] {
		add("center y limits are inverted: [%d, %d]", p.CenterYLimits[0], p.CenterYLimits[1])
	}
	if !(p.MinRadius >= 0) || !(p.MaxRadius >= 0) || math.IsInf(p.MaxRadius, 0) {
		add("radius limits must be finite and non-negative, got [%g, %g]", p.MinRadius, p.MaxRadius)
	}

	if p.DilatationNbIter < 0 {
		add("dilatation iterations must not be negative, got %d", p.DilatationNbIter)
	}
	if !(p.CenterThresh > 0) {
		add("center threshold must be positive, got %g", p.CenterThresh)
	}
	if !(p.CircleProbaThresh > 0) {
		add("circle probability threshold must be positive, got %g", p.CircleProbaThresh)
	}
	if !inUnitInterval(p.CirclePerfectness) {
		add("circle perfectness must be in (0, 1], got %g", p.CirclePerfectness)
	}
	if !(p.CenterMinDist > 0) {
		add("center min distance must be positive, got %g", p.CenterMinDist)
	}
	if !(p.MergingRadiusDiffThresh > 0) {
		add("radius difference merging threshold must be positive, got %g", p.MergingRadiusDiffThresh)
	}

	return err
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func inUnitInterval(v float64) bool {
	return v > 0 && v <= 1
}

// String dumps the configuration in a human readable form.
func (p Params) String() string {
	var b strings.Builder
	b.WriteString("Hough Circle Transform Configuration:\n")
	fmt.Fprintf(&b, "\tFiltering + gradient operators = %s\n", p.FilteringAndGradient)
	fmt.Fprintf(&b, "\tGaussian filter kernel size = %d\n", p.GaussianKernelSize)
	fmt.Fprintf(&b, "\tGaussian filter standard deviation = %g\n", p.GaussianStdev)
	fmt.Fprintf(&b, "\tGradient filter kernel size = %d\n", p.GradientFilterKernelSize)
	fmt.Fprintf(&b, "\tEdge detection backend = %s\n", p.EdgeBackend)
	fmt.Fprintf(&b, "\tCanny edge filter thresholds = [%g ; %g]\n", p.LowerCannyThresh, p.UpperCannyThresh)
	fmt.Fprintf(&b, "\tCanny edge filter thresholds ratio (for auto-thresholding) = [%g ; %g]\n", p.LowerCannyThreshRatio, p.UpperCannyThreshRatio)
	fmt.Fprintf(&b, "\tEdge map 8-neighbor connectivity filtering number of iterations = %d\n", p.EdgeMapFilteringNbIter)
	fmt.Fprintf(&b, "\tCenter horizontal position limits: min = %d\tmax = %d\n", p.CenterXLimits[0], p.CenterXLimits[1])
	fmt.Fprintf(&b, "\tCenter vertical position limits: min = %d\tmax = %d\n", p.CenterYLimits[0], p.CenterYLimits[1])
	fmt.Fprintf(&b, "\tRadius limits: min = %g\tmax = %g\n", p.MinRadius, p.MaxRadius)
	fmt.Fprintf(&b, "\tNumber of dilatation iterations = %d\n", p.DilatationNbIter)
	fmt.Fprintf(&b, "\tCenters votes threshold = %g\n", p.CenterThresh)
	fmt.Fprintf(&b, "\tCircle probability threshold = %g\n", p.CircleProbaThresh)
	fmt.Fprintf(&b, "\tCircle perfectness threshold = %g\n", p.CirclePerfectness)
	fmt.Fprintf(&b, "\tCenter min distance = %g\n", p.CenterMinDist)
	fmt.Fprintf(&b, "\tRadius difference merging threshold = %g\n", p.MergingRadiusDiffThresh)
	return b.String()
}

// paramsJSON is the configuration document layout.
type paramsJSON struct {
	FilteringAndGradientType   imaging.FilterType  `json:"filteringAndGradientType"`
	GaussianKernelSize         int                 `json:"gaussianKernelSize"`
	GaussianStdev              float64             `json:"gaussianStdev"`
	GradientFilterKernelSize   int                 `json:"gradientFilterKernelSize"`
	CannyBackendType           imaging.EdgeBackend `json:"cannyBackendType"`
	LowerCannyThresh           float64             `json:"lowerCannyThresh"`
	LowerThresholdRatio        float64             `json:"lowerThresholdRatio"`
	UpperCannyThresh           float64             `json:"upperCannyThresh"`
	UpperThresholdRatio        float64             `json:"upperThresholdRatio"`
	EdgeMapFilteringNbIter     int                 `json:"edgeMapFilteringNbIter"`
	CenterXLimits              [2]int              `json:"centerXlimits"`
	CenterYLimits              [2]int              `json:"centerYlimits"`
	RadiusLimits               [2]float64          `json:"radiusLimits"`
	DilatationNbIter           int                 `json:"dilatationNbIter"`
	CenterThresh               float64             `json:"centerThresh"`
	CircleProbabilityThreshold float64             `json:"circleProbabilityThreshold"`
	CirclePerfectnessThreshold float64             `json:"circlePerfectnessThreshold"`
	CenterMinDistance          float64             `json:"centerMinDistance"`
	MergingRadiusDiffThresh    float64             `json:"mergingRadiusDiffThresh"`
}

func (p Params) toJSON() paramsJSON {
	return paramsJSON{
		FilteringAndGradientType:   p.FilteringAndGradient,
		GaussianKernelSize:         p.GaussianKernelSize,
		GaussianStdev:              p.GaussianStdev,
		GradientFilterKernelSize:   p.GradientFilterKernelSize,
		CannyBackendType:           p.EdgeBackend,
		LowerCannyThresh:           p.LowerCannyThresh,
		LowerThresholdRatio:        p.LowerCannyThreshRatio,
		UpperCannyThresh:           p.UpperCannyThresh,
		UpperThresholdRatio:        p.UpperCannyThreshRatio,
		EdgeMapFilteringNbIter:     p.EdgeMapFilteringNbIter,
		CenterXLimits:              p.CenterXLimits,
		CenterYLimits:              p.CenterYLimits,
		RadiusLimits:               [2]float64{p.MinRadius, p.MaxRadius},
		DilatationNbIter:           p.DilatationNbIter,
		CenterThresh:               p.CenterThresh,
		CircleProbabilityThreshold: p.CircleProbaThresh,
		CirclePerfectnessThreshold: p.CirclePerfectness,
		CenterMinDistance:          p.CenterMinDist,
		MergingRadiusDiffThresh:    p.MergingRadiusDiffThresh,
	}
}

func (w paramsJSON) params() Params {
	return Params{
		FilteringAndGradient:     w.FilteringAndGradientType,
		GaussianKernelSize:       w.GaussianKernelSize,
		GaussianStdev:            w.GaussianStdev,
		GradientFilterKernelSize: w.GradientFilterKernelSize,
		EdgeBackend:              w.CannyBackendType,
		LowerCannyThresh:         w.LowerCannyThresh,
		UpperCannyThresh:         w.UpperCannyThresh,
		LowerCannyThreshRatio:    w.LowerThresholdRatio,
		UpperCannyThreshRatio:    w.UpperThresholdRatio,
		EdgeMapFilteringNbIter:   w.EdgeMapFilteringNbIter,
		CenterXLimits:            w.CenterXLimits,
		CenterYLimits:            w.CenterYLimits,
		MinRadius:                w.RadiusLimits[0],
		MaxRadius:                w.RadiusLimits[1],
		DilatationNbIter:         w.DilatationNbIter,
		CenterThresh:             w.CenterThresh,
		CircleProbaThresh:        w.CircleProbabilityThreshold,
		CirclePerfectness:        w.CirclePerfectnessThreshold,
		CenterMinDist:            w.CenterMinDistance,
		MergingRadiusDiffThresh:  w.MergingRadiusDiffThresh,
	}
}

// MarshalJSON writes the configuration document layout.
func (p Params) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toJSON())
}

// UnmarshalJSON overlays a configuration document onto the current values of
// p: absent fields keep their value and unknown fields are ignored. The result
// is normalized and validated; on error p is left unchanged.
func (p *Params) UnmarshalJSON(data []byte) error {
	wire := p.toJSON()
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	parsed := wire.params().Normalize()
	if err := parsed.Validate(); err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseParams reads a configuration document on top of the defaults.
func ParseParams(data []byte) (Params, error) {
	p := DefaultParams()
	if err := json.Unmarshal(data, &p); err != nil {
		return Params{}, err
	}
	return p, nil
}

// LoadParams reads a configuration file on top of the defaults.
func LoadParams(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	p, err := ParseParams(data)
	if err != nil {
		return Params{}, fmt.Errorf("failed to parse configuration %s: %w", path, err)
	}
	return p, nil
}

// Save writes the configuration as an indented JSON document.
func (p Params) Save(path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	return nil
}
