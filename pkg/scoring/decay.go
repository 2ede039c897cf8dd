package scoring

import (
	"math"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tuning"
)

// Decay applies exponential decay toward the configured floor. Pure:
// elapsed time is always derived from "now minus last event timestamp" by
// the caller, never from a counter, so untouched relationships need no
// background maintenance.
type Decay struct {
	tuning tuning.Tuning
}

// NewDecay creates a new Decay
func NewDecay(t tuning.Tuning) *Decay {
	return &Decay{tuning: t}
}

// Apply decays a previously computed score across elapsedDays for the
// given tier. Monotonically non-increasing in elapsed time, never below
// the floor, never above the input.
func (d *Decay) Apply(previous float64, elapsedDays float64, tier models.Tier) float64 {
	floor := d.tuning.ScoreFloor
	if previous <= floor {
		return floor
	}
	if elapsedDays <= 0 {
		return previous
	}

	halfLife := d.tuning.HalfLife(tier)
	if halfLife <= 0 {
		return previous
	}

	factor := math.Exp(-math.Ln2 * elapsedDays / halfLife)
	return floor + (previous-floor)*factor
}
