package calibration

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucasStrand/no-bulls-hit/board"
)

func TestSolveHomographyRoundTrip(t *testing.T) {
	// A plausible oblique camera view of the board: four clicks that are
	// nowhere near a perfect square.
	img := [4]ImagePoint{
		{X: 612, Y: 141},
		{X: 1034, Y: 402},
		{X: 598, Y: 701},
		{X: 217, Y: 433},
	}
	world := board.ReferencePoints()

	h, err := solveHomography(img, world)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		x, y, err := projectMatrix(h, img[i].X, img[i].Y)
		require.NoError(t, err)
		assert.InDelta(t, world[i].X, x, 1e-6)
		assert.InDelta(t, world[i].Y, y, 1e-6)
	}
}

func TestSolveHomographyIdentityLike(t *testing.T) {
	// Clicking the canonical reference locations themselves must yield
	// (up to scale) the identity transform.
	world := board.ReferencePoints()
	var img [4]ImagePoint
	for i, p := range world {
		img[i] = ImagePoint{X: p.X, Y: p.Y}
	}

	h, err := solveHomography(img, world)
	require.NoError(t, err)

	want := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	for i := range want {
		assert.InDelta(t, want[i], h[i], 1e-6)
	}
}

func TestSolveHomographyCollinear(t *testing.T) {
	img := [4]ImagePoint{
		{X: 100, Y: 100},
		{X: 200, Y: 200},
		{X: 300, Y: 300},
		{X: 400, Y: 400},
	}
	_, err := solveHomography(img, board.ReferencePoints())
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestSolveHomographyRepeatedPoint(t *testing.T) {
	img := [4]ImagePoint{
		{X: 100, Y: 100},
		{X: 100, Y: 100},
		{X: 300, Y: 120},
		{X: 180, Y: 350},
	}
	_, err := solveHomography(img, board.ReferencePoints())
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestProjectMatrixVanishingDenominator(t *testing.T) {
	// A matrix whose bottom row annihilates the probe point.
	h := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 0}
	_, _, err := projectMatrix(h, 10, 10)
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestProjectMatrixScaleInvariant(t *testing.T) {
	h := [9]float64{2, 0, 5, 0, 2, -3, 0, 0, 1}
	x1, y1, err := projectMatrix(h, 7, 11)
	require.NoError(t, err)

	for i := range h {
		h[i] *= 3.5
	}
	x2, y2, err := projectMatrix(h, 7, 11)
	require.NoError(t, err)

	assert.InDelta(t, x1, x2, 1e-9)
	assert.InDelta(t, y1, y2, 1e-9)
	assert.False(t, math.IsNaN(x1) || math.IsNaN(y1))
}
