// Package insight owns the durable insight lifecycle: promotion from
// ephemeral suggestions, the unseen to seen transition, and the
// reconciliation sweep that retires insights whose triggering condition
// no longer holds or whose TTL has elapsed.
package insight

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// EventChecker answers whether qualifying interactions exist after a
// point in time. Validity predicates are pure reads over event history,
// so an insight's fate is decided by what happened, not by when the
// sweep ran.
type EventChecker interface {
	HasCompletedSince(ctx context.Context, tenantID, relationshipID string, after time.Time) (bool, error)
	HasCompletedInTierSince(ctx context.Context, tenantID string, tier models.Tier, after time.Time) (bool, error)
}

// Predicate reports whether an insight's triggering condition still
// holds. Returning false retires the insight as invalidated.
type Predicate func(ctx context.Context, events EventChecker, insight *models.Insight) (bool, error)

// Predicates maps rule ids to validity predicates. Rules without an
// entry stay valid until their TTL.
var Predicates = map[string]Predicate{
	models.RuleDrift:       relationshipStillNeglected,
	models.RuleHighDrift:   relationshipStillNeglected,
	models.RuleTierNeglect: tierStillNeglected,
}

// predicateFor returns the rule's predicate or the TTL-only default
func predicateFor(ruleID string) Predicate {
	if predicate, ok := Predicates[ruleID]; ok {
		return predicate
	}
	return alwaysValid
}

// relationshipStillNeglected holds until any completed interaction with
// the target relationship lands after the insight was generated.
func relationshipStillNeglected(ctx context.Context, events EventChecker, insight *models.Insight) (bool, error) {
	if insight.RelationshipID == nil {
		return false, nil
	}
	contacted, err := events.HasCompletedSince(ctx, insight.TenantID, *insight.RelationshipID, insight.GeneratedAt)
	if err != nil {
		return false, err
	}
	return !contacted, nil
}

// tierStillNeglected holds until any completed interaction with any
// relationship in the referenced tier lands after the insight was
// generated.
func tierStillNeglected(ctx context.Context, events EventChecker, insight *models.Insight) (bool, error) {
	if insight.Tier == nil {
		return false, nil
	}
	contacted, err := events.HasCompletedInTierSince(ctx, insight.TenantID, *insight.Tier, insight.GeneratedAt)
	if err != nil {
		return false, err
	}
	return !contacted, nil
}

func alwaysValid(_ context.Context, _ EventChecker, _ *models.Insight) (bool, error) {
	return true, nil
}
