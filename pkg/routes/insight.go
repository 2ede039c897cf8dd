package routes

import (
	"context"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/insight"
	"github.com/Ramsey-B/fern/pkg/models"
)

// InsightRepo is the slice of the insight repository the handler needs
type InsightRepo interface {
	List(ctx context.Context, tenantID string, status models.InsightStatus, limit int) ([]*models.Insight, error)
}

// InsightEngine owns insight status transitions and the reconciliation sweep
type InsightEngine interface {
	MarkSeen(ctx context.Context, tenantID, id string) (*models.Insight, error)
	Reconcile(ctx context.Context, tenantID string) (*insight.ReconcileResult, error)
}

// InsightHandler handles insight API requests
type InsightHandler struct {
	repo   InsightRepo
	engine InsightEngine
}

// NewInsightHandler creates a new insight handler
func NewInsightHandler(repo InsightRepo, engine InsightEngine) *InsightHandler {
	return &InsightHandler{
		repo:   repo,
		engine: engine,
	}
}

// RegisterRoutes registers the insight routes
func (h *InsightHandler) RegisterRoutes(g *echo.Group) {
	insights := g.Group("/insights")
	insights.GET("", h.List)
	insights.PATCH("/:id/seen", h.MarkSeen)
	insights.POST("/reconcile", h.Reconcile)
}

// List handles GET /insights with optional status and limit query filters
func (h *InsightHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	status := models.InsightStatus(c.QueryParam("status"))
	if status != "" && !status.IsValid() {
		return BadRequest("unknown insight status '" + string(status) + "'")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	insights, err := h.repo.List(ctx, tenantID, status, limit)
	if err != nil {
		return err
	}

	return SuccessResponse(c, insights)
}

// MarkSeen handles PATCH /insights/:id/seen
func (h *InsightHandler) MarkSeen(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	updated, err := h.engine.MarkSeen(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, updated)
}

// Reconcile handles POST /insights/reconcile, an on-demand sweep for the
// tenant. The background sweeper runs the same idempotent pass.
func (h *InsightHandler) Reconcile(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	result, err := h.engine.Reconcile(ctx, tenantID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, result)
}
