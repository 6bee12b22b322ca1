package detection

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func edgeMapFrom(width, height int, pts ...image.Point) *image.Gray {
	edges := image.NewGray(image.Rect(0, 0, width, height))
	for _, p := range pts {
		edges.SetGray(p.X, p.Y, color.Gray{Y: 255})
	}
	return edges
}

func TestFilterEdgeMap_RemovesIsolatedPixels(t *testing.T) {
	edges := edgeMapFrom(10, 10,
		image.Pt(1, 1),                 // isolated
		image.Pt(5, 5), image.Pt(6, 6), // diagonal pair
		image.Pt(0, 9), image.Pt(1, 9), // pair on the border
	)

	filtered := filterEdgeMap(edges, 1)
	assert.Equal(t, uint8(0), filtered.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(255), filtered.GrayAt(5, 5).Y)
	assert.Equal(t, uint8(255), filtered.GrayAt(6, 6).Y)
	assert.Equal(t, uint8(255), filtered.GrayAt(0, 9).Y)
	assert.Equal(t, uint8(255), filtered.GrayAt(1, 9).Y)

	// The input is left untouched.
	assert.Equal(t, uint8(255), edges.GrayAt(1, 1).Y)
}

func TestFilterEdgeMap_Iterations(t *testing.T) {
	edges := edgeMapFrom(6, 6, image.Pt(2, 2))

	assert.Equal(t, uint8(255), filterEdgeMap(edges, 0).GrayAt(2, 2).Y)
	assert.Equal(t, uint8(0), filterEdgeMap(edges, 3).GrayAt(2, 2).Y)
}

func TestFilterEdgeMap_OffsetBounds(t *testing.T) {
	edges := image.NewGray(image.Rect(3, 4, 9, 10))
	edges.SetGray(4, 5, color.Gray{Y: 255})
	edges.SetGray(5, 5, color.Gray{Y: 255})

	filtered := filterEdgeMap(edges, 1)
	assert.Equal(t, image.Rect(0, 0, 6, 6), filtered.Bounds())
	assert.Equal(t, uint8(255), filtered.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(255), filtered.GrayAt(2, 1).Y)
}

func TestCollectEdgePoints_RowMajor(t *testing.T) {
	edges := edgeMapFrom(4, 3, image.Pt(3, 0), image.Pt(1, 2), image.Pt(0, 1))
	dIx := mat.NewDense(3, 4, nil)
	dIy := mat.NewDense(3, 4, nil)
	dIx.Set(1, 0, 2.5)
	dIy.Set(2, 1, -1)

	samples := collectEdgePoints(edges, dIx, dIy)
	assert.Equal(t, []edgeSample{
		{X: 3, Y: 0},
		{X: 0, Y: 1, Gx: 2.5},
		{X: 1, Y: 2, Gy: -1},
	}, samples)
}
