package detection

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func votedCells(acc *centerAccumulator) map[image.Point]int {
	cells := map[image.Point]int{}
	for y := acc.box.Min.Y; y < acc.box.Max.Y; y++ {
		for x := acc.box.Min.X; x < acc.box.Max.X; x++ {
			if v := acc.at(x, y); v != 0 {
				cells[image.Pt(x, y)] = v
			}
		}
	}
	return cells
}

func TestVoteCenters_BothDirections(t *testing.T) {
	p := DefaultParams().WithRadiusLimits(0, 3)
	acc := voteCenters([]edgeSample{{X: 10, Y: 10, Gx: 4}}, p, 20, 20)

	assert.Equal(t, map[image.Point]int{
		{7, 10}: 1, {8, 10}: 1, {9, 10}: 1,
		{10, 10}: 1,
		{11, 10}: 1, {12, 10}: 1, {13, 10}: 1,
	}, votedCells(acc))
}

func TestVoteCenters_RepeatedCellsVoteOnce(t *testing.T) {
	p := DefaultParams().WithRadiusLimits(0, 2)
	acc := voteCenters([]edgeSample{{X: 10, Y: 10, Gx: 1, Gy: 1}}, p, 20, 20)

	assert.Equal(t, map[image.Point]int{
		{9, 9}: 1, {10, 10}: 1, {11, 11}: 1,
	}, votedCells(acc))
}

func TestVoteCenters_RayStopsAtImageBorder(t *testing.T) {
	p := DefaultParams().WithRadiusLimits(1, 5)
	acc := voteCenters([]edgeSample{{X: 1, Y: 5, Gx: -2}}, p, 10, 10)

	assert.Equal(t, map[image.Point]int{
		{0, 5}: 1,
		{2, 5}: 1, {3, 5}: 1, {4, 5}: 1, {5, 5}: 1, {6, 5}: 1,
	}, votedCells(acc))
}

func TestVoteCenters_BoundingBox(t *testing.T) {
	p := DefaultParams().WithRadiusLimits(0, 5).WithCenterLimits(12, 30, 10, 10)
	acc := voteCenters([]edgeSample{{X: 10, Y: 10, Gx: 1}}, p, 20, 20)

	assert.Equal(t, image.Rect(12, 10, 20, 11), acc.box)
	assert.Equal(t, map[image.Point]int{
		{12, 10}: 1, {13, 10}: 1, {14, 10}: 1, {15, 10}: 1,
	}, votedCells(acc))
}

func TestVoteCenters_EmptyBox(t *testing.T) {
	p := DefaultParams().WithCenterLimits(50, 60, 0, 10)
	acc := voteCenters([]edgeSample{{X: 1, Y: 1, Gx: 1}}, p, 20, 20)
	assert.Empty(t, acc.votes)
	assert.Empty(t, acc.candidates(acc.dilate(1), 0.5))
}

func TestVoteCenters_ZeroGradientSkipped(t *testing.T) {
	p := DefaultParams().WithRadiusLimits(0, 5)
	acc := voteCenters([]edgeSample{{X: 5, Y: 5, Gx: 1e-9, Gy: -1e-9}}, p, 10, 10)
	assert.Empty(t, votedCells(acc))
}

func TestVoteCenters_ParallelSumIsExact(t *testing.T) {
	// Many edge points on a circle of radius 12 all pointing at its center.
	var edges []edgeSample
	for i := 0; i < 720; i++ {
		theta := 2 * math.Pi * float64(i) / 720
		edges = append(edges, edgeSample{
			X:  int(math.Round(30 + 12*math.Cos(theta))),
			Y:  int(math.Round(30 + 12*math.Sin(theta))),
			Gx: math.Cos(theta),
			Gy: math.Sin(theta),
		})
	}
	p := DefaultParams().WithRadiusLimits(12, 12)
	acc := voteCenters(edges, p, 60, 60)

	assert.Equal(t, 720, acc.at(30, 30))
}

func TestDilate(t *testing.T) {
	acc := &centerAccumulator{box: image.Rect(0, 0, 7, 7), votes: make([]int32, 49)}
	acc.votes[3*7+3] = 9

	once := acc.dilate(1)
	twice := acc.dilate(2)
	for y := 0; y < 7; y++ {
		for x := 0; x < 7; x++ {
			inOnce := abs(x-3) <= 1 && abs(y-3) <= 1
			inTwice := abs(x-3) <= 2 && abs(y-3) <= 2
			assert.Equal(t, inOnce, once[y*7+x] == 9, "once at (%d,%d)", x, y)
			assert.Equal(t, inTwice, twice[y*7+x] == 9, "twice at (%d,%d)", x, y)
		}
	}
	assert.Equal(t, int32(9), acc.votes[3*7+3])
	assert.Equal(t, int32(0), acc.votes[0], "dilation must not modify the accumulator")
}

func TestCandidates_LocalMaximaAboveThreshold(t *testing.T) {
	acc := &centerAccumulator{box: image.Rect(10, 20, 16, 24), votes: make([]int32, 24)}
	set := func(x, y int, v int32) { acc.votes[(y-20)*6+x-10] = v }
	set(11, 21, 60)
	set(12, 21, 40) // dominated by its neighbor
	set(15, 23, 60) // plateau of two equal maxima
	set(14, 23, 60)
	set(13, 20, 5) // below threshold

	found := acc.candidates(acc.dilate(1), 50)
	require.Equal(t, []CenterCandidate{
		{Row: 21, Col: 11, Votes: 60},
		{Row: 23, Col: 14, Votes: 60},
		{Row: 23, Col: 15, Votes: 60},
	}, found)

	assert.Empty(t, acc.candidates(acc.dilate(1), 60), "threshold is exclusive")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
