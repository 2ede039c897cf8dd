package models

import (
	"time"
)

// ScoreRecord is the cached derived score for one relationship. It is a
// checkpoint, not an approximation: recomputing from the full event history
// at any instant reproduces the cached value within float tolerance after
// decay is applied. Written only by the score orchestrator.
type ScoreRecord struct {
	RelationshipID string    `json:"relationship_id" db:"relationship_id"`
	TenantID       string    `json:"tenant_id" db:"tenant_id"`
	Score          float64   `json:"score" db:"score"`
	LastEventAt    time.Time `json:"last_event_at" db:"last_event_at"`
	ComputedAt     time.Time `json:"computed_at" db:"computed_at"`
}

// NetworkHealth is the tier-weighted mean of all current relationship
// scores, with a per-tier breakdown for season classification and display.
type NetworkHealth struct {
	Overall    float64          `json:"overall"`
	ByTier     map[Tier]float64 `json:"by_tier"`
	Count      int              `json:"count"`
	ComputedAt time.Time        `json:"computed_at"`
}
