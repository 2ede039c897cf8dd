package insight

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tuning"
)

// Store persists insights. Get returns a NotFoundError for unknown ids.
type Store interface {
	Create(ctx context.Context, insight *models.Insight) error
	Get(ctx context.Context, tenantID, id string) (*models.Insight, error)
	ListNonTerminal(ctx context.Context, tenantID string) ([]*models.Insight, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status models.InsightStatus) error
}

// RelationshipStore verifies promotion targets exist
type RelationshipStore interface {
	Get(ctx context.Context, tenantID, id string) (*models.Relationship, error)
}

// Notifier publishes insight lifecycle events to the bus. May be nil.
type Notifier interface {
	EmitInsightPromoted(ctx context.Context, insight *models.Insight) error
	EmitInsightRetired(ctx context.Context, insight *models.Insight) error
}

// ReconcileResult summarizes one reconciliation pass
type ReconcileResult struct {
	Checked     int `json:"checked"`
	Invalidated int `json:"invalidated"`
	Expired     int `json:"expired"`
	Remaining   int `json:"remaining"`
}

// Engine owns insight mutations: promotion, the seen transition and the
// reconciliation sweep.
type Engine struct {
	logger        ectologger.Logger
	store         Store
	relationships RelationshipStore
	events        EventChecker
	notifier      Notifier
	tuning        tuning.Tuning
}

func NewEngine(logger ectologger.Logger, store Store, relationships RelationshipStore, events EventChecker, notifier Notifier, t tuning.Tuning) *Engine {
	return &Engine{
		logger:        logger,
		store:         store,
		relationships: relationships,
		events:        events,
		notifier:      notifier,
		tuning:        t,
	}
}

// Promote persists a suggestion as a durable insight with status unseen.
// Relationship-scoped rules must name a relationship and tier-scoped
// rules a tier; unknown rules may carry either or neither.
func (e *Engine) Promote(ctx context.Context, tenantID string, req *models.PromoteSuggestionRequest) (*models.Insight, error) {
	ctx, span := tracing.StartSpan(ctx, "insight.Engine.Promote")
	defer span.End()

	switch req.RuleID {
	case models.RuleDrift, models.RuleHighDrift, models.RuleTierMismatch, models.RuleMomentum, models.RuleDeepen:
		if req.RelationshipID == nil {
			return nil, fernerrors.NewValidationErrorf("rule '%s' requires a relationship", req.RuleID).AddField("relationship_id")
		}
	case models.RuleTierNeglect:
		if req.Tier == nil {
			return nil, fernerrors.NewValidationErrorf("rule '%s' requires a tier", req.RuleID).AddField("tier")
		}
	}

	if req.Tier != nil && !req.Tier.IsValid() {
		return nil, fernerrors.NewValidationErrorf("invalid tier '%s'", *req.Tier).AddField("tier")
	}
	if req.RelationshipID != nil {
		if _, err := e.relationships.Get(ctx, tenantID, *req.RelationshipID); err != nil {
			return nil, err
		}
	}

	ttl := e.tuning.InsightTTL(req.RuleID)
	if req.TTLDays != nil && *req.TTLDays > 0 {
		ttl = time.Duration(*req.TTLDays) * 24 * time.Hour
	}

	now := time.Now().UTC()
	insight := &models.Insight{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		RuleID:         req.RuleID,
		RelationshipID: req.RelationshipID,
		Tier:           req.Tier,
		Status:         models.InsightStatusUnseen,
		GeneratedAt:    now,
		ExpiresAt:      now.Add(ttl),
		UpdatedAt:      now,
	}

	if err := e.store.Create(ctx, insight); err != nil {
		return nil, err
	}

	metrics.InsightsPromotedTotal.WithLabelValues(tenantID, req.RuleID).Inc()
	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":  tenantID,
		"insight_id": insight.ID,
		"rule_id":    req.RuleID,
	}).Info("Promoted suggestion to insight")

	if e.notifier != nil {
		if err := e.notifier.EmitInsightPromoted(ctx, insight); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("Insight promoted but event not published")
		}
	}

	return insight, nil
}

// MarkSeen records the consumer transition unseen to seen. Marking an
// already seen insight is a no-op; terminal insights are never reopened.
func (e *Engine) MarkSeen(ctx context.Context, tenantID, id string) (*models.Insight, error) {
	ctx, span := tracing.StartSpan(ctx, "insight.Engine.MarkSeen")
	defer span.End()

	insight, err := e.store.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if insight.Status == models.InsightStatusSeen {
		return insight, nil
	}
	if insight.Status.IsTerminal() {
		return nil, fernerrors.NewValidationErrorf("insight is already %s", insight.Status).AddField("status")
	}

	if err := e.store.UpdateStatus(ctx, tenantID, id, models.InsightStatusSeen); err != nil {
		return nil, err
	}

	insight.Status = models.InsightStatusSeen
	insight.UpdatedAt = time.Now().UTC()
	return insight, nil
}

// Reconcile sweeps every non-terminal insight for a tenant. The validity
// predicate always runs before the TTL check, so an insight whose
// condition broke before its TTL elapsed retires as invalidated even
// when the sweep arrives late. Terminal transitions are one-way, which
// makes running the sweep twice with no new events a no-op.
func (e *Engine) Reconcile(ctx context.Context, tenantID string) (*ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "insight.Engine.Reconcile")
	defer span.End()

	start := time.Now()
	insights, err := e.store.ListNonTerminal(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &ReconcileResult{Checked: len(insights)}
	for _, insight := range insights {
		status, err := e.reconcileOne(ctx, insight, now)
		if err != nil {
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"tenant_id":  tenantID,
				"insight_id": insight.ID,
			}).Warn("Failed to reconcile insight")
			result.Remaining++
			continue
		}
		switch status {
		case models.InsightStatusInvalidated:
			result.Invalidated++
		case models.InsightStatusExpired:
			result.Expired++
		default:
			result.Remaining++
		}
	}

	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	if result.Invalidated > 0 {
		metrics.InsightsRetiredTotal.WithLabelValues(tenantID, string(models.InsightStatusInvalidated)).Add(float64(result.Invalidated))
	}
	if result.Expired > 0 {
		metrics.InsightsRetiredTotal.WithLabelValues(tenantID, string(models.InsightStatusExpired)).Add(float64(result.Expired))
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"checked":     result.Checked,
		"invalidated": result.Invalidated,
		"expired":     result.Expired,
	}).Info("Reconciled insights")

	return result, nil
}

// reconcileOne returns the status the insight ended the pass in
func (e *Engine) reconcileOne(ctx context.Context, insight *models.Insight, now time.Time) (models.InsightStatus, error) {
	valid, err := predicateFor(insight.RuleID)(ctx, e.events, insight)
	if err != nil {
		return insight.Status, err
	}

	if !valid {
		if err := e.store.UpdateStatus(ctx, insight.TenantID, insight.ID, models.InsightStatusInvalidated); err != nil {
			return insight.Status, err
		}
		insight.Status = models.InsightStatusInvalidated
		e.notifyRetired(ctx, insight)
		return models.InsightStatusInvalidated, nil
	}

	if !now.Before(insight.ExpiresAt) {
		if err := e.store.UpdateStatus(ctx, insight.TenantID, insight.ID, models.InsightStatusExpired); err != nil {
			return insight.Status, err
		}
		insight.Status = models.InsightStatusExpired
		e.notifyRetired(ctx, insight)
		return models.InsightStatusExpired, nil
	}

	return insight.Status, nil
}

func (e *Engine) notifyRetired(ctx context.Context, insight *models.Insight) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.EmitInsightRetired(ctx, insight); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"insight_id": insight.ID,
		}).Warn("Insight retired but event not published")
	}
}
