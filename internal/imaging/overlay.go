package imaging

import (
	"fmt"
	"image"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/basicfont"
)

// OverlayCircle is a circle to draw over an image, in pixel coordinates.
type OverlayCircle struct {
	X      float64
	Y      float64
	Radius float64
}

// OverlayOptions controls how DrawCircles renders circles.
type OverlayOptions struct {
	// Color is a "#RRGGBB" stroke color. When empty each circle gets its own
	// hue, spread evenly around the color wheel by rank.
	Color string

	// LineWidth is the stroke width in pixels. Zero selects 2.
	LineWidth float64

	// Labels draws the rank of each circle (0 is the first) at its center.
	Labels bool
}

// DrawCircles renders circles on top of a copy of img and returns the result.
//
// Pixel (x, y) is centered at (x+0.5, y+0.5) in drawing space, so circle
// coordinates are shifted by half a pixel before stroking.
func DrawCircles(img image.Image, circles []OverlayCircle, opts OverlayOptions) (image.Image, error) {
	var fixed *colorful.Color
	if opts.Color != "" {
		c, err := colorful.Hex(opts.Color)
		if err != nil {
			return nil, fmt.Errorf("invalid overlay color %q: %w", opts.Color, err)
		}
		fixed = &c
	}
	lineWidth := opts.LineWidth
	if lineWidth <= 0 {
		lineWidth = 2
	}

	dc := gg.NewContextForImage(img)
	dc.SetLineWidth(lineWidth)
	dc.SetFontFace(basicfont.Face7x13)

	for i, c := range circles {
		stroke := RankColor(i, len(circles))
		if fixed != nil {
			stroke = *fixed
		}
		dc.SetColor(stroke)

		x, y := c.X+0.5, c.Y+0.5
		dc.DrawCircle(x, y, c.Radius)
		dc.Stroke()
		if opts.Labels {
			dc.DrawStringAnchored(strconv.Itoa(i), x, y, 0.5, 0.5)
		}
	}

	return dc.Image(), nil
}

// RankColor returns a saturated color whose hue depends on the rank among n.
func RankColor(rank, n int) colorful.Color {
	if n <= 0 {
		n = 1
	}
	hue := 360 * float64(rank%n) / float64(n)
	return colorful.Hsv(hue, 0.9, 1)
}
