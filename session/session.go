// Package session owns the per-camera detection state: the latest-wins
// ingestion slot, the processing tick, and the wiring from calibration
// through rectification, stillness tracking, dart isolation and score
// mapping to the result sink.
//
// All pipeline state is owned exclusively by the single processing
// path; the only concurrency is the frame producer writing the inbox
// slot, which is mutex-guarded with overwrite semantics. Backpressure
// is resolved by discarding stale frames, never buffering: only the
// newest visual state matters for motion comparison.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/LucasStrand/no-bulls-hit/board"
	"github.com/LucasStrand/no-bulls-hit/calibration"
	"github.com/LucasStrand/no-bulls-hit/config"
	"github.com/LucasStrand/no-bulls-hit/vision"
)

// Throw is one scored detection delivered to the scoring ledger.
type Throw struct {
	EventID    string               `json:"event_id"`
	SessionID  string               `json:"session_id"`
	Score      int                  `json:"score"`
	Ring       string               `json:"ring"`
	Point      board.CanonicalPoint `json:"point"`
	DetectedAt time.Time            `json:"detected_at"`
}

// Sink receives scored throws. The session does not know how scores
// are applied to game state.
type Sink interface {
	PublishThrow(ctx context.Context, t Throw) error
}

// Status is the operator-visible session state.
type Status int32

const (
	StatusNeedsCalibration Status = iota
	StatusTracking
	StatusCooldown
	StatusDisconnected
)

// String returns a short label for the status.
func (s Status) String() string {
	switch s {
	case StatusTracking:
		return "tracking"
	case StatusCooldown:
		return "cooldown"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "needs_calibration"
	}
}

// Counters are cumulative per-session statistics.
type Counters struct {
	FramesIngested  uint64
	FramesDropped   uint64
	FramesProcessed uint64
	DecodeErrors    uint64
	ProcessErrors   uint64
	Detections      uint64
	NoDetections    uint64
}

// Session is one camera's detection pipeline.
type Session struct {
	id        string
	engine    *calibration.Engine
	rectifier *vision.Rectifier
	monitor   *vision.Monitor
	locator   vision.Locator
	sink      Sink

	tickInterval time.Duration

	inboxMu sync.Mutex
	inbox   *vision.RawFrame

	status atomic.Int32

	framesIngested  atomic.Uint64
	framesDropped   atomic.Uint64
	framesProcessed atomic.Uint64
	decodeErrors    atomic.Uint64
	processErrors   atomic.Uint64
	detections      atomic.Uint64
	noDetections    atomic.Uint64

	// processNow is the tick timestamp of the pass currently running,
	// read by the landing callback. Only the processing path touches it.
	processNow time.Time
}

// New creates a session wired to the given calibration engine, locator
// and sink, with thresholds taken from the tuning.
func New(engine *calibration.Engine, locator vision.Locator, sink Sink, tun *config.Tuning) *Session {
	s := &Session{
		id:           uuid.NewString(),
		engine:       engine,
		rectifier:    vision.NewRectifier(),
		locator:      locator,
		sink:         sink,
		tickInterval: time.Second / time.Duration(tun.GetProcessHz()),
	}
	s.monitor = vision.NewMonitor(vision.MonitorConfig{
		Threshold:             tun.GetMotionThreshold(),
		Cooldown:              tun.GetCooldown(),
		AdvanceBaselineOnMiss: tun.GetAdvanceBaselineOnMiss(),
	}, s.onLanding)
	s.status.Store(int32(StatusNeedsCalibration))
	return s
}

// NewLocator builds the contour locator described by the tuning.
func NewLocator(tun *config.Tuning) vision.Locator {
	tip := vision.TipCentroidDistance
	if tun.GetTipStrategy() == "lowest" {
		tip = vision.TipLowestPoint
	}
	return vision.NewContourLocator(vision.LocatorConfig{
		DiffThreshold: float32(tun.GetDiffThreshold()),
		MinArea:       tun.GetMinContourArea(),
		MaxArea:       tun.GetMaxContourArea(),
		Tip:           tip,
	})
}

// ID returns the session identifier carried on every published throw.
func (s *Session) ID() string { return s.id }

// Status returns the operator-visible state.
func (s *Session) Status() Status {
	return Status(s.status.Load())
}

// Counters returns a snapshot of the session statistics.
func (s *Session) Counters() Counters {
	return Counters{
		FramesIngested:  s.framesIngested.Load(),
		FramesDropped:   s.framesDropped.Load(),
		FramesProcessed: s.framesProcessed.Load(),
		DecodeErrors:    s.decodeErrors.Load(),
		ProcessErrors:   s.processErrors.Load(),
		Detections:      s.detections.Load(),
		NoDetections:    s.noDetections.Load(),
	}
}

// Ingest decodes an encoded frame buffer pushed by the video transport
// and makes it the current frame. Arrivals between processing ticks
// overwrite the slot; the newest frame always wins and older
// undelivered frames are released without processing. Decode failures
// drop the buffer and ingestion continues.
func (s *Session) Ingest(buf []byte) {
	frame, err := vision.DecodeRaw(buf)
	if err != nil {
		s.decodeErrors.Add(1)
		slog.Warn("dropping undecodable frame buffer", "bytes", len(buf))
		return
	}
	s.framesIngested.Add(1)

	s.inboxMu.Lock()
	if s.inbox != nil {
		s.inbox.Close()
		s.framesDropped.Add(1)
	}
	s.inbox = frame
	s.inboxMu.Unlock()
}

// takeInbox pops the current frame, or nil when already consumed.
func (s *Session) takeInbox() *vision.RawFrame {
	s.inboxMu.Lock()
	frame := s.inbox
	s.inbox = nil
	s.inboxMu.Unlock()
	return frame
}

// Process runs one synchronous pipeline pass: at most one frame is
// taken from the inbox, rectified and fed to the stillness machine,
// which invokes dart isolation and scoring on a landing edge.
func (s *Session) Process(now time.Time) {
	frame := s.takeInbox()
	if frame == nil {
		return
	}
	defer frame.Close()

	canonical, err := s.rectifier.Rectify(frame, s.engine.Record())
	switch {
	case errors.Is(err, vision.ErrUncalibrated):
		s.becomeUncalibrated()
		return
	case errors.Is(err, vision.ErrDimensionMismatch):
		// The camera changed resolution; the stored calibration is no
		// longer valid and the operator must recalibrate.
		slog.Warn("source dimensions changed, invalidating calibration",
			"width", frame.Width(), "height", frame.Height())
		if err := s.engine.Reset(); err != nil {
			slog.Error("failed to delete stale calibration", "error", err)
		}
		s.becomeUncalibrated()
		return
	case err != nil:
		s.processErrors.Add(1)
		slog.Error("frame pass failed", "error", err)
		return
	}
	defer canonical.Close()

	s.processNow = now
	s.monitor.Observe(canonical, now)
	s.framesProcessed.Add(1)

	if s.monitor.InCooldown(now) {
		s.status.Store(int32(StatusCooldown))
	} else {
		s.status.Store(int32(StatusTracking))
	}
}

// onLanding runs on each Moving-to-Still edge with a baseline held.
func (s *Session) onLanding(before, after *vision.CanonicalFrame) bool {
	pt, ok := s.locator.Locate(before, after)
	if !ok {
		s.noDetections.Add(1)
		slog.Debug("stillness edge without an isolatable dart")
		return false
	}

	res := board.Score(pt)
	s.detections.Add(1)
	slog.Info("dart detected",
		"score", res.Score,
		"ring", res.Ring.String(),
		"x", res.Point.X,
		"y", res.Point.Y)

	if s.sink != nil {
		throw := Throw{
			EventID:    uuid.NewString(),
			SessionID:  s.id,
			Score:      res.Score,
			Ring:       res.Ring.String(),
			Point:      res.Point,
			DetectedAt: s.processNow,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.sink.PublishThrow(ctx, throw); err != nil {
			slog.Error("failed to publish throw", "error", err)
		}
	}
	return true
}

// becomeUncalibrated resets motion state and surfaces the
// needs-calibration status. Callers fall back to displaying the raw
// frame until the operator recalibrates.
func (s *Session) becomeUncalibrated() {
	if s.Status() != StatusNeedsCalibration {
		s.monitor.Reset()
	}
	s.status.Store(int32(StatusNeedsCalibration))
}

// Run drives the processing tick until the context is cancelled.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Process(now)
		}
	}
}

// Disconnect marks the transport gone and discards all held frames and
// motion state.
func (s *Session) Disconnect() {
	s.inboxMu.Lock()
	if s.inbox != nil {
		s.inbox.Close()
		s.inbox = nil
	}
	s.inboxMu.Unlock()
	s.monitor.Reset()
	s.status.Store(int32(StatusDisconnected))
}

// Close releases everything the session holds.
func (s *Session) Close() {
	s.Disconnect()
}
