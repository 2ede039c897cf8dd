// Package events handles bus ingest and lifecycle event emission
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Emitter publishes lifecycle events for downstream consumers. Delivery and
// notification surfaces live outside the engine; the bus is how they hear
// about state changes.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitInsightPromoted emits an insight.promoted event
func (e *Emitter) EmitInsightPromoted(ctx context.Context, insight *models.Insight) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitInsightPromoted")
	defer span.End()

	event := &kafka.InsightEvent{
		EventType:      "insight.promoted",
		TenantID:       insight.TenantID,
		InsightID:      insight.ID,
		RuleID:         insight.RuleID,
		RelationshipID: insight.RelationshipID,
		Tier:           insight.Tier,
		Status:         string(insight.Status),
		ExpiresAt:      insight.ExpiresAt,
	}

	if err := e.producer.PublishInsightEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit insight.promoted event")
		return err
	}

	return nil
}

// EmitInsightRetired emits an insight.invalidated or insight.expired event
// depending on the terminal status the insight landed in.
func (e *Emitter) EmitInsightRetired(ctx context.Context, insight *models.Insight) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitInsightRetired")
	defer span.End()

	event := &kafka.InsightEvent{
		EventType:      "insight." + string(insight.Status),
		TenantID:       insight.TenantID,
		InsightID:      insight.ID,
		RuleID:         insight.RuleID,
		RelationshipID: insight.RelationshipID,
		Tier:           insight.Tier,
		Status:         string(insight.Status),
		ExpiresAt:      insight.ExpiresAt,
	}

	if err := e.producer.PublishInsightEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit insight retirement event")
		return err
	}

	return nil
}

// EmitStreakReleased emits a streak.released event carrying the forgiveness
// data so downstream messaging can frame the lapse gently.
func (e *Emitter) EmitStreakReleased(ctx context.Context, state *models.StreakState) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitStreakReleased")
	defer span.End()

	event := &kafka.StreakEvent{
		EventType:      "streak.released",
		TenantID:       state.TenantID,
		PreviousStreak: state.PreviousStreak,
		ReleasedAt:     state.ReleasedAt,
	}

	if err := e.producer.PublishStreakEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit streak.released event")
		return err
	}

	return nil
}
