package routes

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ScoreEngine serves lazily decayed score reads and rebuilds
type ScoreEngine interface {
	CurrentScore(ctx context.Context, tenantID, relationshipID string) (*models.ScoreRecord, float64, error)
	RecomputeScore(ctx context.Context, tenantID, relationshipID string) (*models.ScoreRecord, error)
	NetworkHealth(ctx context.Context, tenantID string) (*models.NetworkHealth, error)
}

// ScoreHandler handles score API requests
type ScoreHandler struct {
	engine ScoreEngine
}

// NewScoreHandler creates a new score handler
func NewScoreHandler(engine ScoreEngine) *ScoreHandler {
	return &ScoreHandler{
		engine: engine,
	}
}

// RegisterRoutes registers the score routes
func (h *ScoreHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/relationships/:id/score", h.Current)
	g.POST("/relationships/:id/score/recompute", h.Recompute)
	g.GET("/network-health", h.NetworkHealth)
}

// ScoreResponse pairs the persisted checkpoint with its decayed current value
type ScoreResponse struct {
	RelationshipID string              `json:"relationship_id"`
	Current        float64             `json:"current"`
	Checkpoint     *models.ScoreRecord `json:"checkpoint"`
}

// Current handles GET /relationships/:id/score. The read decays the cached
// checkpoint to now; a missing or untrustworthy checkpoint is rebuilt from
// history first.
func (h *ScoreHandler) Current(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	record, current, err := h.engine.CurrentScore(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, ScoreResponse{
		RelationshipID: id,
		Current:        current,
		Checkpoint:     record,
	})
}

// Recompute handles POST /relationships/:id/score/recompute
func (h *ScoreHandler) Recompute(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	record, err := h.engine.RecomputeScore(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, record)
}

// NetworkHealth handles GET /network-health
func (h *ScoreHandler) NetworkHealth(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	health, err := h.engine.NetworkHealth(ctx, tenantID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, health)
}
