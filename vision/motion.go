package vision

import (
	"log/slog"
	"time"
)

// State classifies whether the observed scene is currently changing.
type State int

const (
	// Moving is the initial state: with no motion evidence yet the
	// scene is assumed unsettled.
	Moving State = iota
	Still
)

// String returns a short label for the state.
func (s State) String() string {
	if s == Still {
		return "still"
	}
	return "moving"
}

// LandingFunc is invoked on a Moving-to-Still transition with a
// baseline available. It receives the pre-throw and post-throw
// canonical frames and reports whether a dart was actually detected,
// which arms the post-detection cooldown. The callback must not retain
// either frame.
type LandingFunc func(before, after *CanonicalFrame) bool

// MonitorConfig carries the stillness tuning knobs.
type MonitorConfig struct {
	// Threshold is the mean absolute grayscale difference below which
	// an observation counts as quiet.
	Threshold float64
	// Cooldown suppresses all motion evaluation after a successful
	// detection, holding the state at Still while vibration settles.
	Cooldown time.Duration
	// AdvanceBaselineOnMiss controls whether a landing callback that
	// found nothing still advances the pre-throw baseline to the
	// newly-still frame. Advancing avoids comparing against a stale
	// baseline forever; not advancing avoids repeated false triggers.
	AdvanceBaselineOnMiss bool
}

// Monitor is the stillness state machine. It compares consecutive
// canonical frames and fires the landing callback on each
// Moving-to-Still edge that has a pre-throw baseline to diff against.
//
// The monitor retains at most two frames: the previous canonical frame
// and the pre-throw baseline, each in a single replace-and-release
// slot. Observed frames stay owned by the caller; the monitor clones
// what it keeps.
type Monitor struct {
	cfg       MonitorConfig
	onLanding LandingFunc

	// Diff measures frame difference. Defaults to MeanAbsDiff; tests
	// substitute synthetic measures.
	Diff func(a, b *CanonicalFrame) float64

	state          State
	lastTransition time.Time
	cooldownUntil  time.Time
	prev           *CanonicalFrame
	baseline       *CanonicalFrame
}

// NewMonitor creates a monitor in the Moving state.
func NewMonitor(cfg MonitorConfig, onLanding LandingFunc) *Monitor {
	return &Monitor{
		cfg:       cfg,
		onLanding: onLanding,
		Diff:      MeanAbsDiff,
		state:     Moving,
	}
}

// State returns the current motion classification.
func (m *Monitor) State() State { return m.state }

// InCooldown reports whether motion evaluation is currently suppressed.
func (m *Monitor) InCooldown(now time.Time) bool {
	return now.Before(m.cooldownUntil)
}

// Observe evaluates one newly rectified canonical frame.
func (m *Monitor) Observe(frame *CanonicalFrame, now time.Time) {
	if m.InCooldown(now) {
		// Evaluation is skipped and the state held Still, but the
		// previous-frame slot keeps tracking so the first post-cooldown
		// comparison is against a fresh frame.
		replaceCanonical(&m.prev, frame.Clone())
		return
	}

	if m.prev == nil {
		replaceCanonical(&m.prev, frame.Clone())
		return
	}

	quiet := m.Diff(m.prev, frame) < m.cfg.Threshold

	switch m.state {
	case Moving:
		if quiet {
			m.transition(Still, now)
			if m.baseline == nil {
				// First-ever still frame: anchor the baseline, nothing
				// to compare yet.
				replaceCanonical(&m.baseline, frame.Clone())
			} else {
				landed := m.onLanding(m.baseline, frame)
				if landed || m.cfg.AdvanceBaselineOnMiss {
					replaceCanonical(&m.baseline, frame.Clone())
				}
				if landed {
					m.cooldownUntil = now.Add(m.cfg.Cooldown)
				}
			}
		}
	case Still:
		if !quiet {
			m.transition(Moving, now)
			if m.baseline == nil {
				// Motion starting from an unknown resting state: the
				// frame just before it anchors the comparison.
				replaceCanonical(&m.baseline, m.prev.Clone())
			}
		}
	}

	replaceCanonical(&m.prev, frame.Clone())
}

func (m *Monitor) transition(to State, now time.Time) {
	slog.Debug("motion state transition",
		"from", m.state.String(),
		"to", to.String())
	m.state = to
	m.lastTransition = now
}

// Reset returns the monitor to its initial Moving state and drops all
// held reference frames. Used on recalibration, disconnect, or when
// the session becomes uncalibrated.
func (m *Monitor) Reset() {
	replaceCanonical(&m.prev, nil)
	replaceCanonical(&m.baseline, nil)
	m.state = Moving
	m.cooldownUntil = time.Time{}
	m.lastTransition = time.Time{}
}
