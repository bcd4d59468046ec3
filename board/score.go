package board

import "math"

// Ring identifies which scoring band a point landed in.
type Ring int

const (
	RingMiss Ring = iota
	RingSingle
	RingDouble
	RingTriple
	RingOuterBull
	RingInnerBull
)

// String returns a short label for the ring.
func (r Ring) String() string {
	switch r {
	case RingSingle:
		return "single"
	case RingDouble:
		return "double"
	case RingTriple:
		return "triple"
	case RingOuterBull:
		return "outer_bull"
	case RingInnerBull:
		return "inner_bull"
	default:
		return "miss"
	}
}

// Result is the score computed for one detected landing point.
type Result struct {
	Score int            `json:"score"`
	Ring  Ring           `json:"ring"`
	Point CanonicalPoint `json:"point"`
}

// Score maps a canonical landing point to its dartboard score. Band
// boundaries are inclusive; bulls are checked before the rings and
// triple before double before single, so exact boundary hits resolve to
// the first matching band.
func Score(p CanonicalPoint) Result {
	dist := p.DistanceFromCenter()

	if dist <= RadiusInnerBull {
		return Result{Score: 50, Ring: RingInnerBull, Point: p}
	}
	if dist <= RadiusOuterBull {
		return Result{Score: 25, Ring: RingOuterBull, Point: p}
	}
	if dist > RadiusDoubleOut {
		return Result{Score: 0, Ring: RingMiss, Point: p}
	}

	// Angle measured clockwise from the top of the board. In screen
	// coordinates y grows downward, so atan2 yields -90 degrees at the
	// top and +90 at the bottom.
	angle := math.Atan2(p.Y-CenterY, p.X-CenterX)*180/math.Pi + 90
	face := SegmentAt(angle)

	switch {
	case dist >= RadiusTripleIn && dist <= RadiusTripleOut:
		return Result{Score: face * 3, Ring: RingTriple, Point: p}
	case dist >= RadiusDoubleIn && dist <= RadiusDoubleOut:
		return Result{Score: face * 2, Ring: RingDouble, Point: p}
	default:
		return Result{Score: face, Ring: RingSingle, Point: p}
	}
}
