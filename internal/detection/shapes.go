package detection

import (
	"encoding/json"
	"image"
	"math"

	"github.com/golang/geo/r2"
)

// Circle is a detected circle or a circle candidate.
//
// Circles are produced by the radius voting stage and consolidated by the
// merging stage. The center uses image coordinates: X is the column and Y the
// row, both in pixels.
type Circle struct {
	// Center is the circle center in pixel coordinates.
	Center r2.Point

	// Radius is the circle radius in pixels.
	Radius float64

	// Votes is the number of edge points supporting the circle.
	Votes int

	// Probability is Votes divided by the length of the part of the circle
	// lying inside the image. It is not clamped and may exceed 1 for clipped
	// or thick circles.
	Probability float64
}

type circleJSON struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Radius      float64 `json:"radius"`
	Votes       int     `json:"votes"`
	Probability float64 `json:"probability"`
}

// MarshalJSON writes the circle as a flat object.
func (c Circle) MarshalJSON() ([]byte, error) {
	return json.Marshal(circleJSON{
		X:           c.Center.X,
		Y:           c.Center.Y,
		Radius:      c.Radius,
		Votes:       c.Votes,
		Probability: c.Probability,
	})
}

// UnmarshalJSON reads the flat object written by MarshalJSON.
func (c *Circle) UnmarshalJSON(data []byte) error {
	var w circleJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Circle{Center: r2.Point{X: w.X, Y: w.Y}, Radius: w.Radius, Votes: w.Votes, Probability: w.Probability}
	return nil
}

// CenterCandidate is a local maximum of the center accumulator.
type CenterCandidate struct {
	Row   int `json:"row"`
	Col   int `json:"col"`
	Votes int `json:"votes"`
}

// Point returns the candidate position as a real-valued point.
func (c CenterCandidate) Point() r2.Point {
	return r2.Point{X: float64(c.Col), Y: float64(c.Row)}
}

// CirclesResult contains the circles detected in one image.
type CirclesResult struct {
	// Circles is the list of detected circles, sorted by votes (most first).
	Circles []Circle `json:"circles"`

	// Count is the number of circles detected.
	Count int `json:"count"`
}

// visibleArcLength returns the length of the part of the circle lying inside
// [0, width-1] x [0, height-1].
//
// Fully visible circles return 2*pi*radius exactly. Clipped circles are
// sampled along their circumference, at least four samples per pixel of arc.
func visibleArcLength(center r2.Point, radius float64, width, height int) float64 {
	if radius <= 0 || width <= 0 || height <= 0 {
		return 0
	}
	full := 2 * math.Pi * radius
	maxX, maxY := float64(width-1), float64(height-1)
	if center.X-radius >= 0 && center.X+radius <= maxX && center.Y-radius >= 0 && center.Y+radius <= maxY {
		return full
	}

	samples := int(math.Ceil(4 * full))
	if samples < 64 {
		samples = 64
	}
	inside := 0
	for i := 0; i < samples; i++ {
		theta := 2 * math.Pi * (float64(i) + 0.5) / float64(samples)
		x := center.X + radius*math.Cos(theta)
		y := center.Y + radius*math.Sin(theta)
		if x >= 0 && x <= maxX && y >= 0 && y <= maxY {
			inside++
		}
	}
	return full * float64(inside) / float64(samples)
}

// probability returns votes per pixel of visible arc, or 0 when nothing of the
// circle is visible.
func probability(votes int, center r2.Point, radius float64, bounds image.Rectangle) float64 {
	expected := visibleArcLength(center, radius, bounds.Dx(), bounds.Dy())
	if expected <= 0 {
		return 0
	}
	return float64(votes) / expected
}
