package calibration

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/LucasStrand/no-bulls-hit/board"
)

// Engine collects operator reference points and turns them into a
// persisted calibration Record. It owns the active record for one
// camera session.
//
// The operator clicks the outer double-ring edge at the top, right,
// bottom and left of the board, in that order. The engine does not
// validate click order beyond the geometric solve succeeding.
type Engine struct {
	store      *Store
	collecting bool
	points     []ImagePoint
	source     SourceDimensions
	active     *Record
}

// NewEngine creates an engine backed by the given store.
func NewEngine(store *Store) *Engine {
	return &Engine{store: store}
}

// Begin clears any in-progress point list and enters collection mode
// for frames of the given source dimensions.
func (e *Engine) Begin(source SourceDimensions) {
	e.collecting = true
	e.points = e.points[:0]
	e.source = source
}

// Collecting reports whether the engine is waiting for operator points.
func (e *Engine) Collecting() bool {
	return e.collecting
}

// PointsCollected returns how many of the four points have been
// submitted so far.
func (e *Engine) PointsCollected() int {
	return len(e.points)
}

// SubmitPoint appends an operator click. It is a no-op returning false
// when the engine is not collecting or already holds four points
// (which only happens transiently inside a failed solve). Submitting
// the fourth point triggers the homography solve; on success the
// record is persisted and becomes active, on failure the four points
// are discarded, collection mode is kept, and ErrDegenerate is
// returned so the operator can re-click.
func (e *Engine) SubmitPoint(p ImagePoint) (bool, error) {
	if !e.collecting || len(e.points) >= 4 {
		return false, nil
	}
	e.points = append(e.points, p)
	if len(e.points) < 4 {
		return true, nil
	}

	var clicked [4]ImagePoint
	copy(clicked[:], e.points)
	e.points = e.points[:0]

	world := board.ReferencePoints()
	matrix, err := solveHomography(clicked, world)
	if err != nil {
		slog.Warn("calibration solve failed, points discarded", "error", err)
		return true, err
	}

	rec := &Record{
		ImagePoints: clicked,
		WorldPoints: world,
		Matrix:      matrix,
		Source:      e.source,
		CreatedAt:   time.Now().UTC(),
	}
	if err := e.store.Save(rec); err != nil {
		return true, fmt.Errorf("persisting calibration: %v", err)
	}

	e.active = rec
	e.collecting = false
	slog.Info("calibration complete",
		"source_width", rec.Source.Width,
		"source_height", rec.Source.Height)
	return true, nil
}

// Cancel discards in-progress points without touching the active
// record.
func (e *Engine) Cancel() {
	e.collecting = false
	e.points = e.points[:0]
}

// Reset invalidates and deletes the stored record. Used on explicit
// operator reset and on source dimension mismatch.
func (e *Engine) Reset() error {
	e.active = nil
	e.points = e.points[:0]
	e.collecting = false
	return e.store.Delete()
}

// Record returns the active calibration, or nil when uncalibrated.
func (e *Engine) Record() *Record {
	return e.active
}

// LoadPersisted restores a previously stored record. Structurally
// invalid persisted data is deleted and ignored rather than surfaced:
// the engine simply starts uncalibrated.
func (e *Engine) LoadPersisted() error {
	rec, err := e.store.Load()
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}
	if !rec.structurallyValid() {
		slog.Warn("discarding structurally invalid persisted calibration")
		return e.store.Delete()
	}
	e.active = rec
	return nil
}
