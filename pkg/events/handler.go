package events

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// EventWriter persists interaction events
type EventWriter interface {
	Create(ctx context.Context, event *models.InteractionEvent) (*models.InteractionEvent, error)
}

// SignalWriter persists activity signals
type SignalWriter interface {
	Create(ctx context.Context, signal *models.ActivitySignal) (*models.ActivitySignal, error)
}

// ScoreApplier folds completed events into cached relationship scores
type ScoreApplier interface {
	ApplyEvent(ctx context.Context, tenantID string, event *models.InteractionEvent) error
}

// Handler applies ingest messages from the bus to the engine. Malformed
// envelopes and bad references are logged and dropped so the partition
// keeps moving; infrastructure failures propagate so the message is
// redelivered.
type Handler struct {
	logger  ectologger.Logger
	events  EventWriter
	signals SignalWriter
	scores  ScoreApplier
}

// NewHandler creates a new ingest handler
func NewHandler(logger ectologger.Logger, events EventWriter, signals SignalWriter, scores ScoreApplier) *Handler {
	return &Handler{
		logger:  logger,
		events:  events,
		signals: signals,
		scores:  scores,
	}
}

// Handle processes one parsed ingest message
func (h *Handler) Handle(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "events.Handler.Handle")
	defer span.End()

	switch {
	case msg.Interaction != nil:
		return h.handleInteraction(ctx, msg.Interaction)
	case msg.Signal != nil:
		return h.handleSignal(ctx, msg.Signal)
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":  msg.Topic,
		"offset": msg.Offset,
	}).Warn("Ignoring unparsed ingest message")
	return nil
}

func (h *Handler) handleInteraction(ctx context.Context, msg *models.InteractionMessage) error {
	log := h.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": msg.TenantID,
		"category":  string(msg.Category),
	})

	event, err := buildEvent(msg)
	if err != nil {
		log.WithError(err).Warn("Dropping invalid interaction message")
		return nil
	}

	created, err := h.events.Create(ctx, event)
	if err != nil {
		if fernerrors.IsNotFoundError(err) || fernerrors.IsValidationError(err) {
			log.WithError(err).Warn("Dropping interaction message with bad references")
			return nil
		}
		return err
	}

	if created.Status == models.EventStatusCompleted {
		if err := h.scores.ApplyEvent(ctx, created.TenantID, created); err != nil {
			return err
		}
	}

	log.WithFields(map[string]any{"event_id": created.ID}).Debug("Ingested interaction event")
	return nil
}

func (h *Handler) handleSignal(ctx context.Context, msg *models.SignalMessage) error {
	log := h.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": msg.TenantID,
		"kind":      string(msg.Kind),
	})

	if msg.TenantID == "" || !msg.Kind.IsValid() {
		log.Warn("Dropping invalid signal message")
		return nil
	}

	occurredAt := time.Now().UTC()
	if msg.OccurredAt != nil {
		occurredAt = msg.OccurredAt.UTC()
	}

	signal := &models.ActivitySignal{
		TenantID:   msg.TenantID,
		Kind:       msg.Kind,
		OccurredAt: occurredAt,
	}
	if _, err := h.signals.Create(ctx, signal); err != nil {
		return err
	}

	log.Debug("Ingested activity signal")
	return nil
}

// buildEvent validates an interaction envelope into an event row
func buildEvent(msg *models.InteractionMessage) (*models.InteractionEvent, error) {
	if msg.TenantID == "" {
		return nil, fernerrors.NewValidationError("message is missing a tenant").AddField("tenant_id")
	}
	if len(msg.RelationshipIDs) == 0 {
		return nil, fernerrors.NewValidationError("message references no relationships").AddField("relationship_ids")
	}
	if !msg.Category.IsValid() {
		return nil, fernerrors.NewValidationErrorf("unknown interaction category '%s'", msg.Category).AddField("category")
	}

	status := msg.Status
	if status == "" {
		status = models.EventStatusCompleted
	}
	if !status.IsValid() {
		return nil, fernerrors.NewValidationErrorf("unknown event status '%s'", status).AddField("status")
	}
	if msg.Duration != nil && !msg.Duration.IsValid() {
		return nil, fernerrors.NewValidationErrorf("unknown duration bucket '%s'", *msg.Duration).AddField("duration")
	}

	occurredAt := time.Now().UTC()
	if msg.OccurredAt != nil {
		occurredAt = msg.OccurredAt.UTC()
	}

	return &models.InteractionEvent{
		ID:              msg.EventID,
		TenantID:        msg.TenantID,
		RelationshipIDs: database.NewJSONB(models.DedupeIDs(msg.RelationshipIDs)),
		Category:        msg.Category,
		Status:          status,
		OccurredAt:      occurredAt,
		Duration:        msg.Duration,
		Vibe:            msg.Vibe,
	}, nil
}
