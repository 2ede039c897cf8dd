package models

import (
	"time"
)

// StreakState is the per-tenant streak singleton. CurrentStreak is always
// the count of consecutive calendar days, ending today or yesterday, each
// containing at least one qualifying event. It is recomputed from raw
// history on every evaluation, never incremented in place. When a positive
// streak drops to zero the previous length and release date are kept so
// the lapse can be messaged without exposing a raw reset.
type StreakState struct {
	TenantID       string     `json:"tenant_id" db:"tenant_id"`
	CurrentStreak  int        `json:"current_streak" db:"current_streak"`
	LongestStreak  int        `json:"longest_streak" db:"longest_streak"`
	PreviousStreak int        `json:"previous_streak" db:"previous_streak"`
	ReleasedAt     *time.Time `json:"released_at,omitempty" db:"released_at"`
	ComputedAt     time.Time  `json:"computed_at" db:"computed_at"`
}
