package models

import (
	"time"
)

// ReasonCode explains why a suggestion fired
type ReasonCode string

const (
	ReasonDrift        ReasonCode = "drift"         // Past expected contact interval
	ReasonHighDrift    ReasonCode = "high_drift"    // Far past expected contact interval
	ReasonTierMismatch ReasonCode = "tier_mismatch" // Interaction pattern contradicts the tier
	ReasonMomentum     ReasonCode = "momentum"      // Recent burst worth keeping alive
	ReasonDeepen       ReasonCode = "deepen"        // Strong score carried by shallow categories
)

// Suggestion is an ephemeral, ranked recommendation to reach out. It is
// regenerated on every evaluation pass and never persisted unless
// explicitly promoted to an Insight.
type Suggestion struct {
	RelationshipID   string     `json:"relationship_id"`
	RelationshipName string     `json:"relationship_name"`
	Tier             Tier       `json:"tier"`
	Reason           ReasonCode `json:"reason"`
	DriftSeverity    float64    `json:"drift_severity"`
	ExpectedDays     int        `json:"expected_days"`
	ActualDays       int        `json:"actual_days"`
	LastInteraction  *time.Time `json:"last_interaction,omitempty"`
}
