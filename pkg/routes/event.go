package routes

import (
	"context"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

// EventRepo is the slice of the event repository the handler needs
type EventRepo interface {
	Create(ctx context.Context, event *models.InteractionEvent) (*models.InteractionEvent, error)
	Get(ctx context.Context, tenantID, id string) (*models.InteractionEvent, error)
	List(ctx context.Context, tenantID, relationshipID string, status models.EventStatus, limit int) ([]*models.InteractionEvent, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status models.EventStatus) error
	AttachReflection(ctx context.Context, tenantID, id, reflection string) error
	Amend(ctx context.Context, tenantID, id string, req *models.AmendEventRequest) (*models.InteractionEvent, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// EventScores is the slice of the score engine the event lifecycle drives
type EventScores interface {
	ApplyEvent(ctx context.Context, tenantID string, event *models.InteractionEvent) error
	RecomputeScore(ctx context.Context, tenantID, relationshipID string) (*models.ScoreRecord, error)
}

// EventHandler handles interaction event API requests
type EventHandler struct {
	repo   EventRepo
	scores EventScores
	logger ectologger.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler(repo EventRepo, scores EventScores, logger ectologger.Logger) *EventHandler {
	return &EventHandler{
		repo:   repo,
		scores: scores,
		logger: logger,
	}
}

// RegisterRoutes registers the event routes
func (h *EventHandler) RegisterRoutes(g *echo.Group) {
	events := g.Group("/events")
	events.POST("", h.Create)
	events.GET("", h.List)
	events.GET("/:id", h.Get)
	events.PATCH("/:id/status", h.UpdateStatus)
	events.PATCH("/:id/reflection", h.AttachReflection)
	events.PUT("/:id", h.Amend)
	events.DELETE("/:id", h.Delete)
}

// Create handles POST /events. A completed event is folded into the cached
// scores of every relationship it references.
func (h *EventHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}
	if !req.Category.IsValid() {
		return BadRequest("unknown interaction category '" + string(req.Category) + "'")
	}

	status := req.Status
	if status == "" {
		status = models.EventStatusCompleted
	}
	if !status.IsValid() {
		return BadRequest("unknown event status '" + string(status) + "'")
	}
	if req.Duration != nil && !req.Duration.IsValid() {
		return BadRequest("unknown duration bucket '" + string(*req.Duration) + "'")
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}

	event := &models.InteractionEvent{
		TenantID:        tenantID,
		RelationshipIDs: database.NewJSONB(models.DedupeIDs(req.RelationshipIDs)),
		Category:        req.Category,
		Status:          status,
		OccurredAt:      occurredAt,
		Duration:        req.Duration,
		Vibe:            req.Vibe,
	}

	created, err := h.repo.Create(ctx, event)
	if err != nil {
		return err
	}

	if created.Status == models.EventStatusCompleted {
		if err := h.scores.ApplyEvent(ctx, tenantID, created); err != nil {
			return err
		}
	}

	return CreatedResponse(c, created)
}

// List handles GET /events with optional relationship_id, status and limit
// query filters.
func (h *EventHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	status := models.EventStatus(c.QueryParam("status"))
	if status != "" && !status.IsValid() {
		return BadRequest("unknown event status '" + string(status) + "'")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	events, err := h.repo.List(ctx, tenantID, c.QueryParam("relationship_id"), status, limit)
	if err != nil {
		return err
	}

	return SuccessResponse(c, events)
}

// Get handles GET /events/:id
func (h *EventHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	event, err := h.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, event)
}

// UpdateStatus handles PATCH /events/:id/status. Transitions only move
// forward; completing an event folds it into the referenced scores.
func (h *EventHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var req models.UpdateEventStatusRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}
	if !req.Status.IsValid() {
		return BadRequest("unknown event status '" + string(req.Status) + "'")
	}

	event, err := h.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if !event.Status.CanTransitionTo(req.Status) {
		return fernerrors.NewValidationErrorf("cannot transition event from '%s' to '%s'", event.Status, req.Status).AddField("status")
	}

	if err := h.repo.UpdateStatus(ctx, tenantID, id, req.Status); err != nil {
		return err
	}

	updated, err := h.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if updated.Status == models.EventStatusCompleted {
		if err := h.scores.ApplyEvent(ctx, tenantID, updated); err != nil {
			return err
		}
	}

	return SuccessResponse(c, updated)
}

// AttachReflection handles PATCH /events/:id/reflection. A completed event
// is frozen except for this.
func (h *EventHandler) AttachReflection(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var req models.AttachReflectionRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	event, err := h.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if event.Status != models.EventStatusCompleted {
		return fernerrors.NewValidationErrorf("reflection requires a completed event, status is '%s'", event.Status).AddField("reflection")
	}

	if err := h.repo.AttachReflection(ctx, tenantID, id, req.Reflection); err != nil {
		return err
	}

	updated, err := h.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, updated)
}

// Amend handles PUT /events/:id. Amending rewrites history, so every
// relationship the event referenced before or after is recomputed from
// scratch; decay cannot be rewound incrementally.
func (h *EventHandler) Amend(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var req models.AmendEventRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}
	if !req.Category.IsValid() {
		return BadRequest("unknown interaction category '" + string(req.Category) + "'")
	}
	if req.Duration != nil && !req.Duration.IsValid() {
		return BadRequest("unknown duration bucket '" + string(*req.Duration) + "'")
	}
	req.RelationshipIDs = models.DedupeIDs(req.RelationshipIDs)

	before, err := h.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	amended, err := h.repo.Amend(ctx, tenantID, id, &req)
	if err != nil {
		return err
	}

	if amended.Status == models.EventStatusCompleted {
		affected := models.DedupeIDs(append(before.RelationshipIDs.GetValue(), amended.RelationshipIDs.GetValue()...))
		for _, relationshipID := range affected {
			if _, err := h.scores.RecomputeScore(ctx, tenantID, relationshipID); err != nil {
				h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"event_id":        id,
					"relationship_id": relationshipID,
				}).Error("Failed to recompute score after amend")
				return err
			}
		}
	}

	return SuccessResponse(c, amended)
}

// Delete handles DELETE /events/:id. Removing a completed event rewrites
// history, so the referenced relationships are recomputed.
func (h *EventHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	event, err := h.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := h.repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}

	if event.Status == models.EventStatusCompleted {
		for _, relationshipID := range event.RelationshipIDs.GetValue() {
			if _, err := h.scores.RecomputeScore(ctx, tenantID, relationshipID); err != nil {
				h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
					"event_id":        id,
					"relationship_id": relationshipID,
				}).Error("Failed to recompute score after delete")
				return err
			}
		}
	}

	return NoContentResponse(c)
}
