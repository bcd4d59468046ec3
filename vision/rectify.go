package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/LucasStrand/no-bulls-hit/board"
	"github.com/LucasStrand/no-bulls-hit/calibration"
)

// ErrUncalibrated reports that no valid calibration record exists for
// the frame. Callers fall back to raw passthrough and surface a
// needs-calibration state; the frame never reaches the stillness state
// machine.
var ErrUncalibrated = errors.New("vision: no calibration record")

// ErrDimensionMismatch reports a frame whose source dimensions differ
// from the ones the active calibration was performed at. The session
// reacts by resetting the calibration engine.
var ErrDimensionMismatch = errors.New("vision: frame dimensions do not match calibration")

// Rectifier warps raw frames into the fixed-size canonical board view.
type Rectifier struct {
	size int
}

// NewRectifier creates a rectifier producing canonical frames of the
// board's square side length.
func NewRectifier() *Rectifier {
	return &Rectifier{size: int(board.Side)}
}

// Size returns the canonical output edge length in pixels.
func (r *Rectifier) Size() int { return r.size }

// Rectify applies the record's homography to the raw frame. The caller
// owns both the input and the returned canonical frame.
func (r *Rectifier) Rectify(raw *RawFrame, rec *calibration.Record) (out *CanonicalFrame, err error) {
	if rec == nil {
		return nil, ErrUncalibrated
	}
	if !rec.Source.Matches(raw.Width(), raw.Height()) {
		return nil, ErrDimensionMismatch
	}

	// The warp runs inside OpenCV; a malformed matrix surfaces as a
	// panic, which we degrade to a dropped frame.
	defer func() {
		if r := recover(); r != nil {
			if out != nil {
				out.Close()
				out = nil
			}
			err = fmt.Errorf("vision: perspective warp failed: %v", r)
		}
	}()

	h := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer h.Close()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			h.SetDoubleAt(i, j, rec.Matrix[3*i+j])
		}
	}

	dst := gocv.NewMat()
	gocv.WarpPerspective(raw.mat, &dst, h, image.Pt(r.size, r.size))
	return &CanonicalFrame{mat: dst}, nil
}
