// Package vision holds the frame pipeline: decoding, perspective
// rectification into canonical board space, the stillness state
// machine, and dart isolation on frame differences.
package vision

import (
	"errors"

	"gocv.io/x/gocv"

	"github.com/LucasStrand/no-bulls-hit/calibration"
)

// ErrDecode reports an encoded buffer that could not be decoded into a
// frame. The buffer is dropped and ingestion continues.
var ErrDecode = errors.New("vision: failed to decode frame buffer")

// RawFrame is a decoded frame in source pixel space. The holder owns
// the underlying Mat and must Close it exactly once.
type RawFrame struct {
	mat gocv.Mat
}

// DecodeRaw decodes an encoded image buffer (JPEG or PNG) into a raw
// frame.
func DecodeRaw(buf []byte) (*RawFrame, error) {
	mat, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return nil, ErrDecode
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrDecode
	}
	return &RawFrame{mat: mat}, nil
}

// NewRawFrame wraps an existing Mat, taking ownership.
func NewRawFrame(mat gocv.Mat) *RawFrame {
	return &RawFrame{mat: mat}
}

// Mat exposes the pixel buffer. Callers must not Close it.
func (f *RawFrame) Mat() gocv.Mat { return f.mat }

// Width returns the frame width in pixels.
func (f *RawFrame) Width() int { return f.mat.Cols() }

// Height returns the frame height in pixels.
func (f *RawFrame) Height() int { return f.mat.Rows() }

// Dimensions returns the source dimensions this frame was decoded at.
func (f *RawFrame) Dimensions() calibration.SourceDimensions {
	return calibration.SourceDimensions{Width: f.Width(), Height: f.Height()}
}

// Close releases the pixel buffer.
func (f *RawFrame) Close() {
	f.mat.Close()
}

// CanonicalFrame is a perspective-corrected frame in canonical board
// space. Same single-owner Close semantics as RawFrame.
type CanonicalFrame struct {
	mat gocv.Mat
}

// NewCanonicalFrame wraps an existing Mat, taking ownership.
func NewCanonicalFrame(mat gocv.Mat) *CanonicalFrame {
	return &CanonicalFrame{mat: mat}
}

// Mat exposes the pixel buffer. Callers must not Close it.
func (f *CanonicalFrame) Mat() gocv.Mat { return f.mat }

// Clone returns an independently owned copy.
func (f *CanonicalFrame) Clone() *CanonicalFrame {
	return &CanonicalFrame{mat: f.mat.Clone()}
}

// Close releases the pixel buffer.
func (f *CanonicalFrame) Close() {
	f.mat.Close()
}

// replaceCanonical closes the frame in slot, if any, and stores next.
// Every retained canonical frame lives in exactly one such slot.
func replaceCanonical(slot **CanonicalFrame, next *CanonicalFrame) {
	if *slot != nil {
		(*slot).Close()
	}
	*slot = next
}

// MeanAbsDiff returns the mean absolute grayscale pixel difference
// between two canonical frames. This is the motion measure the
// stillness state machine thresholds.
func MeanAbsDiff(a, b *CanonicalFrame) float64 {
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a.mat, b.mat, &diff)

	if diff.Channels() == 1 {
		return diff.Mean().Val1
	}
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)
	return gray.Mean().Val1
}
