// Package config loads the daemon configuration and the detection
// tuning parameters.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Tuning holds the detection threshold constants. All fields are
// pointers so a partial JSON file only overrides what it mentions; the
// Get* methods supply defaults for the rest.
type Tuning struct {
	// Stillness state machine
	MotionThreshold       *float64 `json:"motion_threshold,omitempty"`
	Cooldown              *string  `json:"cooldown,omitempty"` // duration string like "1s"
	AdvanceBaselineOnMiss *bool    `json:"advance_baseline_on_miss,omitempty"`

	// Dart isolation
	DiffThreshold  *float64 `json:"diff_threshold,omitempty"`
	MinContourArea *float64 `json:"min_contour_area,omitempty"`
	MaxContourArea *float64 `json:"max_contour_area,omitempty"`
	TipStrategy    *string  `json:"tip_strategy,omitempty"` // "centroid" or "lowest"

	// Processing tick
	ProcessHz *int `json:"process_hz,omitempty"`
}

// Tuning defaults. The motion threshold and contour bounds are in
// canonical-frame units.
const (
	defaultMotionThreshold = 2.0
	defaultCooldown        = time.Second
	defaultDiffThreshold   = 60.0
	defaultMinContourArea  = 60.0
	defaultMaxContourArea  = 7000.0
	defaultTipStrategy     = "centroid"
	defaultProcessHz       = 30
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultTuning returns a Tuning with every field set to its default.
func DefaultTuning() *Tuning {
	return &Tuning{
		MotionThreshold:       ptrFloat64(defaultMotionThreshold),
		Cooldown:              ptrString(defaultCooldown.String()),
		AdvanceBaselineOnMiss: ptrBool(true),
		DiffThreshold:         ptrFloat64(defaultDiffThreshold),
		MinContourArea:        ptrFloat64(defaultMinContourArea),
		MaxContourArea:        ptrFloat64(defaultMaxContourArea),
		TipStrategy:           ptrString(defaultTipStrategy),
		ProcessHz:             ptrInt(defaultProcessHz),
	}
}

// LoadTuning loads tuning from a JSON file. Omitted fields keep their
// defaults, so partial configs are safe.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %v", err)
	}

	t := &Tuning{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse tuning JSON: %v", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %v", err)
	}
	return t, nil
}

// Validate rejects values that would make detection misbehave.
func (t *Tuning) Validate() error {
	if t.MotionThreshold != nil && *t.MotionThreshold <= 0 {
		return fmt.Errorf("motion_threshold must be positive, got %v", *t.MotionThreshold)
	}
	if t.Cooldown != nil {
		if d, err := time.ParseDuration(*t.Cooldown); err != nil || d < 0 {
			return fmt.Errorf("cooldown must be a non-negative duration, got %q", *t.Cooldown)
		}
	}
	if t.DiffThreshold != nil && (*t.DiffThreshold <= 0 || *t.DiffThreshold > 255) {
		return fmt.Errorf("diff_threshold must be in (0, 255], got %v", *t.DiffThreshold)
	}
	if t.MinContourArea != nil && *t.MinContourArea < 0 {
		return fmt.Errorf("min_contour_area must be non-negative, got %v", *t.MinContourArea)
	}
	// The bounds are checked as the getters will resolve them, so a
	// supplied min cannot silently clear the default max.
	if min, max := t.GetMinContourArea(), t.GetMaxContourArea(); max <= min {
		return fmt.Errorf("max_contour_area (%v) must exceed min_contour_area (%v)", max, min)
	}
	if t.TipStrategy != nil && *t.TipStrategy != "centroid" && *t.TipStrategy != "lowest" {
		return fmt.Errorf("tip_strategy must be \"centroid\" or \"lowest\", got %q", *t.TipStrategy)
	}
	if t.ProcessHz != nil && (*t.ProcessHz < 1 || *t.ProcessHz > 240) {
		return fmt.Errorf("process_hz must be in [1, 240], got %d", *t.ProcessHz)
	}
	return nil
}

// GetMotionThreshold returns the stillness threshold.
func (t *Tuning) GetMotionThreshold() float64 {
	if t.MotionThreshold != nil {
		return *t.MotionThreshold
	}
	return defaultMotionThreshold
}

// GetCooldown returns the post-detection cooldown window.
func (t *Tuning) GetCooldown() time.Duration {
	if t.Cooldown != nil {
		if d, err := time.ParseDuration(*t.Cooldown); err == nil {
			return d
		}
	}
	return defaultCooldown
}

// GetAdvanceBaselineOnMiss returns the baseline-advance policy.
func (t *Tuning) GetAdvanceBaselineOnMiss() bool {
	if t.AdvanceBaselineOnMiss != nil {
		return *t.AdvanceBaselineOnMiss
	}
	return true
}

// GetDiffThreshold returns the binary mask intensity cutoff.
func (t *Tuning) GetDiffThreshold() float64 {
	if t.DiffThreshold != nil {
		return *t.DiffThreshold
	}
	return defaultDiffThreshold
}

// GetMinContourArea returns the smallest plausible dart mark area.
func (t *Tuning) GetMinContourArea() float64 {
	if t.MinContourArea != nil {
		return *t.MinContourArea
	}
	return defaultMinContourArea
}

// GetMaxContourArea returns the largest plausible dart mark area.
func (t *Tuning) GetMaxContourArea() float64 {
	if t.MaxContourArea != nil {
		return *t.MaxContourArea
	}
	return defaultMaxContourArea
}

// GetTipStrategy returns the tip extraction strategy name.
func (t *Tuning) GetTipStrategy() string {
	if t.TipStrategy != nil {
		return *t.TipStrategy
	}
	return defaultTipStrategy
}

// GetProcessHz returns the processing tick rate.
func (t *Tuning) GetProcessHz() int {
	if t.ProcessHz != nil {
		return *t.ProcessHz
	}
	return defaultProcessHz
}
