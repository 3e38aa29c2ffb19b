// Package guard implements the hard upper bound on CRF search iterations.
package guard

import (
	"fmt"

	"github.com/five82/mfboost/internal/xerrors"
)

// HardCeiling is the absolute maximum permitted regardless of caller request.
const HardCeiling = 500

// Presets by video duration.
const (
	PresetShort    = 150 // < 300s
	PresetMedium   = 100 // 300-600s
	PresetLong     = 80  // > 600s
	PresetUltimate = 200 // ultimate mode
)

// PresetForDuration returns the iteration budget preset for a video of the
// given duration, or PresetUltimate when ultimate mode is requested.
func PresetForDuration(durationSecs float64, ultimate bool) int {
	if ultimate {
		return PresetUltimate
	}
	switch {
	case durationSecs < 300:
		return PresetShort
	case durationSecs <= 600:
		return PresetMedium
	default:
		return PresetLong
	}
}

// Guard bounds the number of iterations in a single file's CRF search.
type Guard struct {
	max     int
	context string
	count   int
}

// New creates a guard. maxIterations is clamped to HardCeiling.
func New(maxIterations int, context string) *Guard {
	if maxIterations > HardCeiling {
		maxIterations = HardCeiling
	}
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &Guard{max: maxIterations, context: context}
}

// Increment records one more iteration. Returns the new count, or an
// IterationBudgetExceeded error if the budget is spent. The count is
// monotone non-decreasing and is never incremented past max once
// exhausted.
func (g *Guard) Increment() (int, error) {
	if g.count >= g.max {
		return g.count, xerrors.New(
			xerrors.KindIterationBudgetExceeded,
			xerrors.Fatal,
			fmt.Sprintf("%s: exceeded iteration budget (count=%d max=%d)", g.context, g.count, g.max),
		)
	}
	g.count++
	return g.count, nil
}

// Count returns the current iteration count.
func (g *Guard) Count() int { return g.count }

// Max returns the configured (post-clamp) maximum.
func (g *Guard) Max() int { return g.max }

// Remaining returns how many increments are still available.
func (g *Guard) Remaining() int {
	if g.max <= g.count {
		return 0
	}
	return g.max - g.count
}
