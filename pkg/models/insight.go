package models

import (
	"time"
)

// InsightStatus is the lifecycle state of an insight. unseen -> seen is
// owned by the consuming UI; invalidated and expired are terminal and
// owned by the reconciler. Terminal statuses are never reversed.
type InsightStatus string

const (
	InsightStatusUnseen      InsightStatus = "unseen"
	InsightStatusSeen        InsightStatus = "seen"
	InsightStatusInvalidated InsightStatus = "invalidated"
	InsightStatusExpired     InsightStatus = "expired"
)

func (s InsightStatus) IsValid() bool {
	switch s {
	case InsightStatusUnseen, InsightStatusSeen, InsightStatusInvalidated, InsightStatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions
func (s InsightStatus) IsTerminal() bool {
	return s == InsightStatusInvalidated || s == InsightStatusExpired
}

// Insight rule identifiers. Reason-coded suggestions promote under their
// own code; tier_neglect is tier-scoped and set explicitly at promotion.
const (
	RuleDrift        = "drift"
	RuleHighDrift    = "high_drift"
	RuleTierMismatch = "tier_mismatch"
	RuleMomentum     = "momentum"
	RuleDeepen       = "deepen"
	RuleTierNeglect  = "tier_neglect"
)

// Insight is a durable, time-bounded proactive claim about a relationship
// or pattern. Created by promoting a suggestion; retired by the reconciler
// when its triggering condition no longer holds or its TTL elapses.
type Insight struct {
	ID             string        `json:"id" db:"id"`
	TenantID       string        `json:"tenant_id" db:"tenant_id"`
	RuleID         string        `json:"rule_id" db:"rule_id"`
	RelationshipID *string       `json:"relationship_id,omitempty" db:"relationship_id"`
	Tier           *Tier         `json:"tier,omitempty" db:"tier"`
	Status         InsightStatus `json:"status" db:"status"`
	GeneratedAt    time.Time     `json:"generated_at" db:"generated_at"`
	ExpiresAt      time.Time     `json:"expires_at" db:"expires_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// PromoteSuggestionRequest persists a suggestion as a durable insight.
// RuleID defaults to the suggestion's reason code; tier-scoped rules carry
// the tier instead of a relationship.
type PromoteSuggestionRequest struct {
	RuleID         string  `json:"rule_id" validate:"required"`
	RelationshipID *string `json:"relationship_id,omitempty"`
	Tier           *Tier   `json:"tier,omitempty"`
	TTLDays        *int    `json:"ttl_days,omitempty"`
}
