package routes

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
)

// SignalRepo is the slice of the activity signal repository the handler needs
type SignalRepo interface {
	Create(ctx context.Context, signal *models.ActivitySignal) (*models.ActivitySignal, error)
	List(ctx context.Context, tenantID string, kind models.SignalKind, limit int) ([]*models.ActivitySignal, error)
}

// SignalHandler handles activity signal API requests. Signals count toward
// streak continuity, never toward relationship scores.
type SignalHandler struct {
	repo SignalRepo
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(repo SignalRepo) *SignalHandler {
	return &SignalHandler{
		repo: repo,
	}
}

// RegisterRoutes registers the signal routes
func (h *SignalHandler) RegisterRoutes(g *echo.Group) {
	signals := g.Group("/signals")
	signals.POST("", h.Create)
	signals.GET("", h.List)
}

// Create handles POST /signals
func (h *SignalHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.CreateSignalRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}
	if !req.Kind.IsValid() {
		return BadRequest("unknown signal kind '" + string(req.Kind) + "'")
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}

	signal := &models.ActivitySignal{
		TenantID:   tenantID,
		Kind:       req.Kind,
		OccurredAt: occurredAt,
	}

	created, err := h.repo.Create(ctx, signal)
	if err != nil {
		return err
	}

	return CreatedResponse(c, created)
}

// List handles GET /signals with optional kind and limit query filters
func (h *SignalHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	kind := models.SignalKind(c.QueryParam("kind"))
	if kind != "" && !kind.IsValid() {
		return BadRequest("unknown signal kind '" + string(kind) + "'")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	signals, err := h.repo.List(ctx, tenantID, kind, limit)
	if err != nil {
		return err
	}

	return SuccessResponse(c, signals)
}
