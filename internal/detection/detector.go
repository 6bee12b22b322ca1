package detection

import (
	"fmt"
	"image"
	"time"

	"github.com/golang/geo/r2"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/hough-circles-mcp/internal/imaging"
)

// Detector finds circles in gray images with the gradient-based circle Hough
// transform.
//
// A Detector keeps the intermediate results of its last run for inspection
// (gradients, edge map, candidates). They are replaced at the start of every
// Detect call. A Detector is not safe for concurrent use; use one per
// goroutine.
type Detector struct {
	params Params
	logger zerolog.Logger

	gradientOp     imaging.GradientOperator
	edgeDetector   imaging.EdgeDetector
	customGradient bool
	customEdges    bool

	bounds           image.Rectangle
	dIx, dIy         *mat.Dense
	edgeMap          *image.Gray
	edges            []edgeSample
	centerCandidates []CenterCandidate
	refinedCenters   []r2.Point
	circleCandidates []Circle
	detections       []Circle
}

// Option customizes a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for per-stage debug events.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// WithGradientOperator replaces the gradient computation configured by the
// parameters.
func WithGradientOperator(op imaging.GradientOperator) Option {
	return func(d *Detector) {
		d.gradientOp = op
		d.customGradient = true
	}
}

// WithEdgeDetector replaces the edge detector configured by the parameters.
func WithEdgeDetector(ed imaging.EdgeDetector) Option {
	return func(d *Detector) {
		d.edgeDetector = ed
		d.customEdges = true
	}
}

// New returns a detector using params. Misordered radius limits are swapped;
// any other invalid value is reported as an error wrapping ErrInvalidConfig.
func New(params Params, opts ...Option) (*Detector, error) {
	d := &Detector{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.SetParams(params); err != nil {
		return nil, err
	}
	return d, nil
}

// Params returns a copy of the current configuration.
func (d *Detector) Params() Params {
	return d.params
}

// SetParams validates and installs a whole configuration. On error the
// previous configuration stays in place.
func (d *Detector) SetParams(params Params) error {
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return err
	}

	gradientOp := d.gradientOp
	if !d.customGradient {
		op, err := imaging.NewBlurGradient(params.FilteringAndGradient, params.GaussianKernelSize,
			params.GaussianStdev, params.GradientFilterKernelSize)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		gradientOp = op
	}
	edgeDetector := d.edgeDetector
	if !d.customEdges {
		ed, err := imaging.NewEdgeDetector(params.EdgeBackend, params.LowerCannyThresh, params.UpperCannyThresh,
			params.LowerCannyThreshRatio, params.UpperCannyThreshRatio)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		edgeDetector = ed
	}

	d.params = params
	d.gradientOp = gradientOp
	d.edgeDetector = edgeDetector
	return nil
}

func (d *Detector) update(modify func(p *Params)) error {
	p := d.params
	modify(&p)
	return d.SetParams(p)
}

// SetFilteringAndGradientType selects the gradient filters.
func (d *Detector) SetFilteringAndGradientType(filter imaging.FilterType) error {
	return d.update(func(p *Params) { p.FilteringAndGradient = filter })
}

// SetGaussianParameters sets the Gaussian blur kernel size and standard deviation.
func (d *Detector) SetGaussianParameters(kernelSize int, stdev float64) error {
	return d.update(func(p *Params) {
		p.GaussianKernelSize = kernelSize
		p.GaussianStdev = stdev
	})
}

// SetGradientFilterAperture sets the Sobel or Scharr kernel size.
func (d *Detector) SetGradientFilterAperture(aperture int) error {
	return d.update(func(p *Params) { p.GradientFilterKernelSize = aperture })
}

// SetEdgeBackend selects the edge detection algorithm.
func (d *Detector) SetEdgeBackend(backend imaging.EdgeBackend) error {
	return d.update(func(p *Params) { p.EdgeBackend = backend })
}

// SetCannyThresholds sets fixed hysteresis thresholds. A negative value asks
// for automatic thresholds.
func (d *Detector) SetCannyThresholds(lower, upper float64) error {
	return d.update(func(p *Params) {
		p.LowerCannyThresh = lower
		p.UpperCannyThresh = upper
	})
}

// SetCannyThresholdRatio sets the ratios used by automatic thresholding.
func (d *Detector) SetCannyThresholdRatio(lowerRatio, upperRatio float64) error {
	return d.update(func(p *Params) {
		p.LowerCannyThreshRatio = lowerRatio
		p.UpperCannyThreshRatio = upperRatio
	})
}

// SetEdgeMapFilteringIterations sets the number of isolated pixel removal passes.
func (d *Detector) SetEdgeMapFilteringIterations(nbIter int) error {
	return d.update(func(p *Params) { p.EdgeMapFilteringNbIter = nbIter })
}

// SetCircleCenterMinDist sets the center distance under which candidates may merge.
func (d *Detector) SetCircleCenterMinDist(dist float64) error {
	return d.update(func(p *Params) { p.CenterMinDist = dist })
}

// SetCircleCenterBoundingBox restricts the center search to an inclusive box.
func (d *Detector) SetCircleCenterBoundingBox(xmin, xmax, ymin, ymax int) error {
	return d.update(func(p *Params) {
		p.CenterXLimits = [2]int{xmin, xmax}
		p.CenterYLimits = [2]int{ymin, ymax}
	})
}

// SetCircleRadiusLimits sets the radius range, swapping misordered bounds.
func (d *Detector) SetCircleRadiusLimits(minRadius, maxRadius float64) error {
	return d.update(func(p *Params) {
		p.MinRadius = minRadius
		p.MaxRadius = maxRadius
	})
}

// SetCirclePerfectness sets the minimum cosine between an edge gradient and
// the radial direction for the edge point to vote for a radius.
func (d *Detector) SetCirclePerfectness(perfectness float64) error {
	return d.update(func(p *Params) { p.CirclePerfectness = perfectness })
}

// SetCenterComputationParameters sets the center vote threshold and the
// number of dilations used to find local maxima.
func (d *Detector) SetCenterComputationParameters(centerThresh float64, dilatationNbIter int) error {
	return d.update(func(p *Params) {
		p.CenterThresh = centerThresh
		p.DilatationNbIter = dilatationNbIter
	})
}

// SetRadiusRatioThreshold sets the minimum circle probability.
func (d *Detector) SetRadiusRatioThreshold(ratio float64) error {
	return d.update(func(p *Params) { p.CircleProbaThresh = ratio })
}

// SetRadiusMergingThreshold sets the radius difference under which candidates may merge.
func (d *Detector) SetRadiusMergingThreshold(thresh float64) error {
	return d.update(func(p *Params) { p.MergingRadiusDiffThresh = thresh })
}

// Detect runs the whole pipeline on img and returns the circles sorted by
// decreasing votes. Images with no pixel give an empty result.
func (d *Detector) Detect(img image.Image) ([]Circle, error) {
	d.reset()
	gray := imaging.ToGray(img)
	d.bounds = gray.Bounds()
	if d.bounds.Empty() {
		return []Circle{}, nil
	}

	start := time.Now()
	dIx, dIy, err := d.gradientOp.ComputeGradients(gray)
	if err != nil {
		return nil, fmt.Errorf("failed to compute gradients: %w", err)
	}
	d.logger.Debug().Int("width", d.bounds.Dx()).Int("height", d.bounds.Dy()).
		Dur("elapsed", time.Since(start)).Msg("gradients computed")

	return d.run(dIx, dIy)
}

// DetectN runs Detect and keeps the nbCircles circles with the most votes. A
// negative nbCircles keeps them all.
func (d *Detector) DetectN(img image.Image, nbCircles int) ([]Circle, error) {
	circles, err := d.Detect(img)
	if err != nil {
		return nil, err
	}
	return topN(circles, nbCircles), nil
}

// DetectGradients runs the pipeline on caller supplied gradients, skipping
// gradient computation but not edge detection. Both matrices must have the
// same size, one row per image row.
func (d *Detector) DetectGradients(dIx, dIy *mat.Dense) ([]Circle, error) {
	d.reset()
	if dIx == nil || dIy == nil {
		return nil, ErrGradientMismatch
	}
	rows, cols := dIx.Dims()
	if r, c := dIy.Dims(); r != rows || c != cols {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrGradientMismatch, cols, rows, c, r)
	}
	d.bounds = image.Rect(0, 0, cols, rows)
	return d.run(dIx, dIy)
}

func (d *Detector) reset() {
	d.bounds = image.Rectangle{}
	d.dIx, d.dIy = nil, nil
	d.edgeMap = nil
	d.edges = nil
	d.centerCandidates = nil
	d.refinedCenters = nil
	d.circleCandidates = nil
	d.detections = nil
}

func (d *Detector) run(dIx, dIy *mat.Dense) ([]Circle, error) {
	d.dIx, d.dIy = dIx, dIy
	width, height := d.bounds.Dx(), d.bounds.Dy()

	start := time.Now()
	edgeMap, err := d.edgeDetector.DetectEdges(dIx, dIy)
	if err != nil {
		return nil, fmt.Errorf("failed to detect edges: %w", err)
	}
	if edgeMap.Bounds().Dx() != width || edgeMap.Bounds().Dy() != height {
		return nil, fmt.Errorf("edge map is %dx%d, want %dx%d", edgeMap.Bounds().Dx(), edgeMap.Bounds().Dy(), width, height)
	}
	d.edgeMap = filterEdgeMap(edgeMap, d.params.EdgeMapFilteringNbIter)
	d.edges = collectEdgePoints(d.edgeMap, dIx, dIy)
	lower, upper := d.CannyThresholds()
	d.logger.Debug().Int("edgePoints", len(d.edges)).Float64("lowerThresh", lower).Float64("upperThresh", upper).
		Dur("elapsed", time.Since(start)).Msg("edge map computed")

	start = time.Now()
	acc := voteCenters(d.edges, d.params, width, height)
	d.centerCandidates = acc.candidates(acc.dilate(d.params.DilatationNbIter), d.params.CenterThresh)
	d.logger.Debug().Int("centerCandidates", len(d.centerCandidates)).
		Dur("elapsed", time.Since(start)).Msg("center candidates computed")

	start = time.Now()
	d.refinedCenters = refineCenters(acc, d.centerCandidates, d.edges, d.params)
	d.circleCandidates = voteRadii(d.refinedCenters, d.edges, d.params, d.bounds)
	d.logger.Debug().Int("circleCandidates", len(d.circleCandidates)).
		Dur("elapsed", time.Since(start)).Msg("circle candidates computed")

	start = time.Now()
	d.detections = mergeCircles(d.circleCandidates, d.params, d.bounds)
	d.logger.Debug().Int("circles", len(d.detections)).
		Dur("elapsed", time.Since(start)).Msg("circle candidates merged")

	return cloneCircles(d.detections), nil
}

func topN(circles []Circle, n int) []Circle {
	if n < 0 || n >= len(circles) {
		return circles
	}
	return circles[:n:n]
}

func cloneCircles(circles []Circle) []Circle {
	out := make([]Circle, len(circles))
	copy(out, circles)
	return out
}

// Bounds returns the bounds of the last processed image.
func (d *Detector) Bounds() image.Rectangle {
	return d.bounds
}

// EdgeMap returns the filtered edge map of the last run, nil before any run
// or after an empty image. The map must not be modified.
func (d *Detector) EdgeMap() *image.Gray {
	return d.edgeMap
}

// GradientX returns the horizontal gradient of the last run.
func (d *Detector) GradientX() *mat.Dense {
	return d.dIx
}

// GradientY returns the vertical gradient of the last run.
func (d *Detector) GradientY() *mat.Dense {
	return d.dIy
}

// EdgePoints returns the edge pixels of the last run in row-major order.
func (d *Detector) EdgePoints() []image.Point {
	pts := make([]image.Point, len(d.edges))
	for i, e := range d.edges {
		pts[i] = image.Pt(e.X, e.Y)
	}
	return pts
}

// CenterCandidates returns the center candidates of the last run.
func (d *Detector) CenterCandidates() []CenterCandidate {
	out := make([]CenterCandidate, len(d.centerCandidates))
	copy(out, d.centerCandidates)
	return out
}

// RefinedCenters returns the sub-pixel position of every center candidate of
// the last run, in the order of CenterCandidates. Radius voting starts from
// these positions.
func (d *Detector) RefinedCenters() []r2.Point {
	out := make([]r2.Point, len(d.refinedCenters))
	copy(out, d.refinedCenters)
	return out
}

// CircleCandidates returns the circle candidates of the last run, before merging.
func (d *Detector) CircleCandidates() []Circle {
	return cloneCircles(d.circleCandidates)
}

// Detections returns the circles of the last run.
func (d *Detector) Detections() []Circle {
	return cloneCircles(d.detections)
}

// CannyThresholds returns the hysteresis thresholds of the last run when the
// edge detector reports them, the configured ones otherwise.
func (d *Detector) CannyThresholds() (lower, upper float64) {
	if reporter, ok := d.edgeDetector.(interface{ Thresholds() (float64, float64) }); ok {
		return reporter.Thresholds()
	}
	return d.params.LowerCannyThresh, d.params.UpperCannyThresh
}
