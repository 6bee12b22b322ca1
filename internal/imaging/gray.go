package imaging

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// ErrEmptyImage is returned by operations that need at least one pixel.
var ErrEmptyImage = errors.New("image has zero width or height")

// ToGray converts any image to an 8-bit gray image whose bounds start at (0,0).
//
// Color images go through imaging.Grayscale (Rec. 601 luma). Gray inputs are
// copied so the result never aliases the caller's buffer.
func ToGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	gray := image.NewGray(image.Rect(0, 0, width, height))
	if width == 0 || height == 0 {
		return gray
	}

	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < height; y++ {
			srcOff := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+width], src.Pix[srcOff:srcOff+width])
		}
		return gray
	}

	nrgba := imaging.Grayscale(img)
	for y := 0; y < height; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < width; x++ {
			gray.Pix[y*gray.Stride+x] = row[4*x]
		}
	}
	return gray
}
