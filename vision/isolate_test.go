package vision

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func blankCanvas(t *testing.T) *CanonicalFrame {
	t.Helper()
	f := NewCanonicalFrame(gocv.NewMatWithSize(500, 500, gocv.MatTypeCV8UC3))
	t.Cleanup(f.Close)
	return f
}

// drawDartMark paints a filled triangle whose apex points down at tip,
// roughly the bright sliver a landed dart leaves in a difference image.
func drawDartMark(f *CanonicalFrame, tip image.Point) {
	pts := gocv.NewPointsVectorFromPoints([][]image.Point{{
		{X: tip.X - 6, Y: tip.Y - 40},
		{X: tip.X + 6, Y: tip.Y - 40},
		tip,
	}})
	defer pts.Close()
	white := color.RGBA{255, 255, 255, 255}
	gocv.FillPoly(&f.mat, pts, white)
}

func defaultLocator() *ContourLocator {
	return NewContourLocator(LocatorConfig{
		DiffThreshold: 60,
		MinArea:       60,
		MaxArea:       7000,
		Tip:           TipCentroidDistance,
	})
}

func TestLocateFindsTip(t *testing.T) {
	before := blankCanvas(t)
	after := blankCanvas(t)
	tip := image.Pt(310, 220)
	drawDartMark(after, tip)

	pt, ok := defaultLocator().Locate(before, after)
	require.True(t, ok)
	assert.InDelta(t, float64(tip.X), pt.X, 2)
	assert.InDelta(t, float64(tip.Y), pt.Y, 2)
}

func TestLocateNoDetectionOnIdenticalFrames(t *testing.T) {
	before := blankCanvas(t)
	after := blankCanvas(t)

	_, ok := defaultLocator().Locate(before, after)
	assert.False(t, ok, "identical frames produce the expected no-detection outcome")
}

func TestLocateFiltersTinyNoise(t *testing.T) {
	before := blankCanvas(t)
	after := blankCanvas(t)
	// A couple of isolated bright pixels, well under MinArea.
	gocv.Rectangle(&after.mat, image.Rect(50, 50, 53, 53), color.RGBA{255, 255, 255, 255}, -1)
	gocv.Rectangle(&after.mat, image.Rect(400, 410, 402, 412), color.RGBA{255, 255, 255, 255}, -1)

	_, ok := defaultLocator().Locate(before, after)
	assert.False(t, ok)
}

func TestLocateFiltersLightingArtifacts(t *testing.T) {
	before := blankCanvas(t)
	after := blankCanvas(t)
	// A huge region, as a light flicker or shadow sweep produces.
	gocv.Rectangle(&after.mat, image.Rect(0, 0, 400, 400), color.RGBA{255, 255, 255, 255}, -1)

	_, ok := defaultLocator().Locate(before, after)
	assert.False(t, ok)
}

func TestLocatePicksLargestCandidate(t *testing.T) {
	before := blankCanvas(t)
	after := blankCanvas(t)
	// A plausible but small blob plus a clearly larger dart mark; the
	// larger one must win.
	gocv.Rectangle(&after.mat, image.Rect(100, 100, 112, 112), color.RGBA{255, 255, 255, 255}, -1)
	tip := image.Pt(330, 340)
	drawDartMark(after, tip)

	pt, ok := defaultLocator().Locate(before, after)
	require.True(t, ok)
	assert.InDelta(t, float64(tip.X), pt.X, 2)
	assert.InDelta(t, float64(tip.Y), pt.Y, 2)
}

func TestLocateLowestPointStrategy(t *testing.T) {
	before := blankCanvas(t)
	after := blankCanvas(t)
	tip := image.Pt(250, 300)
	drawDartMark(after, tip) // apex points down, so the tip is also lowest

	locator := NewContourLocator(LocatorConfig{
		DiffThreshold: 60,
		MinArea:       60,
		MaxArea:       7000,
		Tip:           TipLowestPoint,
	})
	pt, ok := locator.Locate(before, after)
	require.True(t, ok)
	assert.InDelta(t, float64(tip.Y), pt.Y, 2)
}

func TestLocateIgnoresFaintDifferences(t *testing.T) {
	before := blankCanvas(t)
	after := blankCanvas(t)
	// A change well below the intensity cutoff.
	gocv.Rectangle(&after.mat, image.Rect(200, 200, 260, 260), color.RGBA{20, 20, 20, 255}, -1)

	_, ok := defaultLocator().Locate(before, after)
	assert.False(t, ok)
}
