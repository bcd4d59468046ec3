package vision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

// blankFrame returns a small canonical frame; content is irrelevant for
// tests that substitute a synthetic Diff.
func blankFrame(t *testing.T) *CanonicalFrame {
	t.Helper()
	f := NewCanonicalFrame(gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC1))
	t.Cleanup(f.Close)
	return f
}

// scriptedDiff returns a Diff func that replays the given measures in
// order.
func scriptedDiff(t *testing.T, diffs []float64) func(a, b *CanonicalFrame) float64 {
	t.Helper()
	i := 0
	return func(a, b *CanonicalFrame) float64 {
		if i >= len(diffs) {
			t.Fatalf("unexpected diff call %d", i)
		}
		d := diffs[i]
		i++
		return d
	}
}

func TestMonitorHysteresis(t *testing.T) {
	landings := 0
	m := NewMonitor(MonitorConfig{Threshold: 2}, func(before, after *CanonicalFrame) bool {
		landings++
		return true
	})
	t.Cleanup(m.Reset)

	// Warm-up seats a baseline and returns to Moving: one quiet
	// observation (first-ever still, no detection) then one active.
	m.Diff = scriptedDiff(t, []float64{0, 20, 0, 0, 0, 20, 0, 0})
	now := time.Unix(1000, 0)
	f := blankFrame(t)

	m.Observe(f, now) // first frame, no comparison
	step := func() {
		now = now.Add(33 * time.Millisecond)
		m.Observe(f, now)
	}

	step() // diff 0: Moving -> Still, baseline seated, no detection
	assert.Equal(t, Still, m.State())
	assert.Equal(t, 0, landings)

	step() // diff 20: Still -> Moving, no detection on this edge
	assert.Equal(t, Moving, m.State())
	assert.Equal(t, 0, landings)

	step() // diff 0: Moving -> Still, first detection
	assert.Equal(t, Still, m.State())
	assert.Equal(t, 1, landings)

	step() // diff 0: stays Still
	step() // diff 0: stays Still
	assert.Equal(t, 1, landings)

	step() // diff 20: Still -> Moving
	step() // diff 0: Moving -> Still, second detection
	assert.Equal(t, 2, landings)

	step() // diff 0: stays Still, no third detection
	assert.Equal(t, 2, landings)
}

func TestMonitorFirstStillAnchorsWithoutDetection(t *testing.T) {
	landings := 0
	m := NewMonitor(MonitorConfig{Threshold: 2}, func(before, after *CanonicalFrame) bool {
		landings++
		return true
	})
	t.Cleanup(m.Reset)
	m.Diff = scriptedDiff(t, []float64{0, 0})

	f := blankFrame(t)
	now := time.Unix(1000, 0)
	m.Observe(f, now)
	m.Observe(f, now.Add(time.Millisecond))
	m.Observe(f, now.Add(2*time.Millisecond))

	assert.Equal(t, Still, m.State())
	assert.Equal(t, 0, landings, "first-ever still frame only anchors the baseline")
}

func TestMonitorCooldownSuppressesDetection(t *testing.T) {
	landings := 0
	m := NewMonitor(MonitorConfig{Threshold: 2, Cooldown: time.Second}, func(before, after *CanonicalFrame) bool {
		landings++
		return true
	})
	t.Cleanup(m.Reset)

	// Warm-up (baseline + back to Moving), detection, then motion and
	// stillness oscillating inside the cooldown window.
	m.Diff = scriptedDiff(t, []float64{0, 20, 0, 20, 0, 20, 0})
	f := blankFrame(t)
	now := time.Unix(1000, 0)

	m.Observe(f, now)
	for i := 0; i < 3; i++ {
		now = now.Add(10 * time.Millisecond)
		m.Observe(f, now)
	}
	assert.Equal(t, 1, landings)
	detectionTime := now

	// Oscillation within the window: evaluation is skipped entirely and
	// no diff is consumed; the state is held Still.
	for i := 0; i < 5; i++ {
		now = now.Add(100 * time.Millisecond)
		m.Observe(f, now)
		assert.Equal(t, Still, m.State())
	}
	assert.Equal(t, 1, landings)
	assert.True(t, m.InCooldown(detectionTime.Add(900*time.Millisecond)))

	// After the window, a fresh throw cycle detects again.
	now = detectionTime.Add(1100 * time.Millisecond)
	m.Observe(f, now) // diff 20: Still -> Moving
	now = now.Add(10 * time.Millisecond)
	m.Observe(f, now) // diff 0: Moving -> Still, detection
	assert.Equal(t, 2, landings)
}

func TestMonitorNoCooldownAfterMiss(t *testing.T) {
	// A landing callback that finds nothing must not arm the cooldown.
	m := NewMonitor(MonitorConfig{Threshold: 2, Cooldown: time.Second}, func(before, after *CanonicalFrame) bool {
		return false
	})
	t.Cleanup(m.Reset)
	m.Diff = scriptedDiff(t, []float64{0, 20, 0})

	f := blankFrame(t)
	now := time.Unix(1000, 0)
	m.Observe(f, now)
	for i := 0; i < 3; i++ {
		now = now.Add(10 * time.Millisecond)
		m.Observe(f, now)
	}
	assert.False(t, m.InCooldown(now))
}

func TestMonitorBaselineAdvancePolicy(t *testing.T) {
	for _, advance := range []bool{true, false} {
		var befores []*CanonicalFrame
		m := NewMonitor(MonitorConfig{Threshold: 2, AdvanceBaselineOnMiss: advance}, func(before, after *CanonicalFrame) bool {
			befores = append(befores, before)
			return false
		})
		// Warm-up, miss detection, another motion/still cycle.
		m.Diff = scriptedDiff(t, []float64{0, 20, 0, 20, 0})

		f := blankFrame(t)
		now := time.Unix(1000, 0)
		m.Observe(f, now)
		for i := 0; i < 5; i++ {
			now = now.Add(10 * time.Millisecond)
			m.Observe(f, now)
		}

		assert.Len(t, befores, 2)
		if advance {
			assert.NotSame(t, befores[0], befores[1], "advance=true replaces the baseline after a miss")
		} else {
			assert.Same(t, befores[0], befores[1], "advance=false keeps comparing against the same baseline")
		}
		m.Reset()
	}
}

func TestMonitorResetReturnsToMoving(t *testing.T) {
	m := NewMonitor(MonitorConfig{Threshold: 2}, func(before, after *CanonicalFrame) bool { return true })
	m.Diff = scriptedDiff(t, []float64{0, 0})

	f := blankFrame(t)
	now := time.Unix(1000, 0)
	m.Observe(f, now)
	m.Observe(f, now.Add(time.Millisecond))
	m.Observe(f, now.Add(2*time.Millisecond))
	assert.Equal(t, Still, m.State())

	m.Reset()
	assert.Equal(t, Moving, m.State())
	assert.False(t, m.InCooldown(now))
	assert.Nil(t, m.prev)
	assert.Nil(t, m.baseline)
}
