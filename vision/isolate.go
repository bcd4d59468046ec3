package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/LucasStrand/no-bulls-hit/board"
)

// Locator finds the landing point of a newly arrived dart by comparing
// the pre-throw and post-throw canonical frames. A false result is the
// expected no-detection outcome, not a fault.
type Locator interface {
	Locate(before, after *CanonicalFrame) (board.CanonicalPoint, bool)
}

// TipStrategy selects how the landing point is extracted from the
// candidate contour.
type TipStrategy int

const (
	// TipCentroidDistance picks the contour point farthest from the
	// contour centroid, favoring the tip-ward extremity over blur and
	// shadow around the shaft. This is the primary strategy.
	TipCentroidDistance TipStrategy = iota
	// TipLowestPoint picks the lowest point on screen. Simpler, but
	// only accurate with a near-overhead camera.
	TipLowestPoint
)

// LocatorConfig carries the isolation tuning knobs.
type LocatorConfig struct {
	// DiffThreshold is the grayscale intensity cutoff that turns the
	// frame difference into a binary mask.
	DiffThreshold float32
	// MinArea and MaxArea bound the plausible dart mark size in
	// canonical pixels. Below is noise, above is a lighting or shadow
	// artifact.
	MinArea float64
	MaxArea float64
	Tip     TipStrategy
}

// ContourLocator isolates the dart by absolute frame differencing and
// contour extraction on the thresholded difference mask.
type ContourLocator struct {
	cfg LocatorConfig
}

// NewContourLocator creates a locator with the given tuning.
func NewContourLocator(cfg LocatorConfig) *ContourLocator {
	return &ContourLocator{cfg: cfg}
}

// Locate implements Locator.
func (l *ContourLocator) Locate(before, after *CanonicalFrame) (board.CanonicalPoint, bool) {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(before.mat, after.mat, &diff)

	gray := gocv.NewMat()
	defer gray.Close()
	if diff.Channels() == 1 {
		diff.CopyTo(&gray)
	} else {
		gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
	}

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, l.cfg.DiffThreshold, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	// Largest plausible contour wins.
	best := -1
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area < l.cfg.MinArea || area > l.cfg.MaxArea {
			continue
		}
		if area > bestArea {
			best = i
			bestArea = area
		}
	}
	if best < 0 {
		return board.CanonicalPoint{}, false
	}

	points := contours.At(best).ToPoints()
	if len(points) == 0 {
		return board.CanonicalPoint{}, false
	}

	var tip image.Point
	switch l.cfg.Tip {
	case TipLowestPoint:
		tip = lowestPoint(points)
	default:
		tip = farthestFromCentroid(points)
	}
	return board.CanonicalPoint{X: float64(tip.X), Y: float64(tip.Y)}, true
}

// farthestFromCentroid returns the contour point maximally distant from
// the contour's centroid.
func farthestFromCentroid(points []image.Point) image.Point {
	var cx, cy float64
	for _, p := range points {
		cx += float64(p.X)
		cy += float64(p.Y)
	}
	cx /= float64(len(points))
	cy /= float64(len(points))

	tip := points[0]
	bestDist := -1.0
	for _, p := range points {
		d := math.Hypot(float64(p.X)-cx, float64(p.Y)-cy)
		if d > bestDist {
			bestDist = d
			tip = p
		}
	}
	return tip
}

// lowestPoint returns the contour point with the greatest y.
func lowestPoint(points []image.Point) image.Point {
	tip := points[0]
	for _, p := range points {
		if p.Y > tip.Y {
			tip = p
		}
	}
	return tip
}
