package routes

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
)

// StreakEngine recomputes the streak from raw history
type StreakEngine interface {
	Evaluate(ctx context.Context, tenantID string) (*models.StreakState, error)
}

// StreakHandler handles streak API requests
type StreakHandler struct {
	engine StreakEngine
}

// NewStreakHandler creates a new streak handler
func NewStreakHandler(engine StreakEngine) *StreakHandler {
	return &StreakHandler{
		engine: engine,
	}
}

// RegisterRoutes registers the streak routes
func (h *StreakHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/streak", h.Current)
}

// Current handles GET /streak. The streak is recomputed from raw history on
// every read, never incremented.
func (h *StreakHandler) Current(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	state, err := h.engine.Evaluate(ctx, tenantID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, state)
}
