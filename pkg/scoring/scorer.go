// Package scoring turns interaction events into relationship health
// scores: a pure per-event quality scorer, a pure time decay, and an
// orchestrator that keeps cached score records equivalent to a full
// recomputation from history.
package scoring

import (
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tuning"
)

// Scorer computes the quality contribution of a single interaction event.
// Pure: same event and archetype always produce the same delta.
type Scorer struct {
	tuning tuning.Tuning
}

// NewScorer creates a new Scorer
func NewScorer(t tuning.Tuning) *Scorer {
	return &Scorer{tuning: t}
}

// Score returns the quality delta an event contributes toward the score of
// a relationship with the given archetype. Only completed events
// contribute; planned, pending_confirm and cancelled events score zero.
func (s *Scorer) Score(event *models.InteractionEvent, archetype models.Archetype) float64 {
	if event.Status != models.EventStatusCompleted {
		return 0
	}

	base := s.tuning.CategoryWeight(event.Category)
	if base == 0 {
		return 0
	}

	duration := s.tuning.DurationFactor(event.Duration)
	affinity := s.tuning.Affinity(archetype, event.Category)

	return base * duration * affinity
}
