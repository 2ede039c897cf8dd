package models

import (
	"time"
)

// Season is the coarse classification of the user's current social
// capacity. Ordinal: resting < balanced < blooming.
type Season string

const (
	SeasonResting  Season = "resting"  // Low activity, suppress streak/achievement pressure
	SeasonBalanced Season = "balanced" // Sustainable middle
	SeasonBlooming Season = "blooming" // High activity, celebratory framing allowed
)

func (s Season) IsValid() bool {
	return s == SeasonResting || s == SeasonBalanced || s == SeasonBlooming
}

// Rank returns the ordinal position of the season, resting lowest
func (s Season) Rank() int {
	switch s {
	case SeasonResting:
		return 1
	case SeasonBalanced:
		return 2
	case SeasonBlooming:
		return 3
	}
	return 0
}

// SeasonState is the per-tenant season singleton. This state is
// authoritative, not a cache: a manual override bypasses automatic
// classification until it is cleared or the re-evaluation window elapses,
// after which classification runs fresh and the stale override is dropped.
type SeasonState struct {
	TenantID      string     `json:"tenant_id" db:"tenant_id"`
	Season        Season     `json:"season" db:"season"`
	Override      *Season    `json:"override,omitempty" db:"override"`
	OverrideSetAt *time.Time `json:"override_set_at,omitempty" db:"override_set_at"`
	ClassifiedAt  time.Time  `json:"classified_at" db:"classified_at"`
}

// Effective returns the override when one is set, otherwise the
// classified season.
func (s *SeasonState) Effective() Season {
	if s.Override != nil {
		return *s.Override
	}
	return s.Season
}

// SeasonOverrideRequest pins the season manually
type SeasonOverrideRequest struct {
	Season Season `json:"season" validate:"required"`
}
