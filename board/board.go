// Package board defines the canonical dartboard geometry and the pure
// point-to-score mapping. All coordinates are in canonical board space:
// a fixed square viewed perfectly head-on, origin top-left, y down.
package board

import "math"

const (
	// Side is the edge length of the canonical board square.
	Side = 500.0

	// CenterX and CenterY locate the bullseye in canonical space.
	CenterX = Side / 2
	CenterY = Side / 2

	// Radius is the canonical distance from the center to the outer edge
	// of the double ring. The four calibration reference points sit on
	// this circle.
	Radius = 200.0
)

// Physical ring dimensions of a regulation board in millimetres,
// measured from the center. The canonical radii below are these scaled
// so the double-ring outer edge lands on Radius.
const (
	innerBullMM  = 6.35
	outerBullMM  = 15.9
	tripleInMM   = 99.0
	tripleOutMM  = 107.0
	doubleInMM   = 162.0
	doubleOutMM  = 170.0
	canonicalPer = Radius / doubleOutMM
)

// Ring radii in canonical units.
const (
	RadiusInnerBull = innerBullMM * canonicalPer
	RadiusOuterBull = outerBullMM * canonicalPer
	RadiusTripleIn  = tripleInMM * canonicalPer
	RadiusTripleOut = tripleOutMM * canonicalPer
	RadiusDoubleIn  = doubleInMM * canonicalPer
	RadiusDoubleOut = Radius
)

// SegmentWidthDegrees is the angular width of one scoring segment.
const SegmentWidthDegrees = 360.0 / 20.0

// Segments lists the face values clockwise starting with the segment
// centered at the top of the board.
var Segments = [20]int{20, 1, 18, 4, 13, 6, 10, 15, 2, 17, 3, 19, 7, 16, 8, 11, 14, 9, 12, 5}

// CanonicalPoint is a position in canonical board space.
type CanonicalPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceFromCenter returns the Euclidean distance from the bullseye.
func (p CanonicalPoint) DistanceFromCenter() float64 {
	return math.Hypot(p.X-CenterX, p.Y-CenterY)
}

// ReferencePoints returns the four canonical calibration targets: the
// outer double-ring edge at the top, right, bottom and left of the
// board, in that order. Operators click the matching raw-frame
// locations in the same order.
func ReferencePoints() [4]CanonicalPoint {
	return [4]CanonicalPoint{
		{X: CenterX, Y: CenterY - Radius},
		{X: CenterX + Radius, Y: CenterY},
		{X: CenterX, Y: CenterY + Radius},
		{X: CenterX - Radius, Y: CenterY},
	}
}

// SegmentAt returns the face value of the segment containing the given
// clockwise-from-top angle in degrees.
func SegmentAt(angleDeg float64) int {
	shifted := math.Mod(angleDeg+SegmentWidthDegrees/2+360, 360)
	idx := int(shifted/SegmentWidthDegrees) % 20
	return Segments[idx]
}
