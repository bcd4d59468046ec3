package calibration

import (
	"time"

	"github.com/LucasStrand/no-bulls-hit/board"
)

// ImagePoint is a position in raw source-frame pixels. It is only
// meaningful together with the SourceDimensions in effect when it was
// captured.
type ImagePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SourceDimensions records the pixel size of the frames a calibration
// was performed against.
type SourceDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Matches reports whether a frame of the given size can use this
// calibration.
func (d SourceDimensions) Matches(width, height int) bool {
	return d.Width == width && d.Height == height
}

// Record is a completed calibration: the four clicked image points (in
// top, right, bottom, left order on the double-ring outer edge), the
// canonical reference points they map to, the solved homography in
// row-major order, and the source dimensions it is valid for.
type Record struct {
	ImagePoints [4]ImagePoint           `json:"image_points"`
	WorldPoints [4]board.CanonicalPoint `json:"world_points"`
	Matrix      [9]float64              `json:"matrix"`
	Source      SourceDimensions        `json:"source"`
	CreatedAt   time.Time               `json:"created_at"`
}

// Project maps a raw image point into canonical board space.
func (r *Record) Project(p ImagePoint) (board.CanonicalPoint, error) {
	x, y, err := projectMatrix(r.Matrix, p.X, p.Y)
	if err != nil {
		return board.CanonicalPoint{}, err
	}
	return board.CanonicalPoint{X: x, Y: y}, nil
}

// structurallyValid reports whether a persisted record has the shape a
// solve would have produced. It does not re-verify the geometry.
func (r *Record) structurallyValid() bool {
	if r.Source.Width <= 0 || r.Source.Height <= 0 {
		return false
	}
	for _, p := range r.ImagePoints {
		if p.X < 0 || p.Y < 0 {
			return false
		}
	}
	var nonzero bool
	for _, v := range r.Matrix {
		if v != 0 {
			nonzero = true
			break
		}
	}
	return nonzero
}
