package routes

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
)

// SeasonEngine classifies the tenant's season and manages the override
type SeasonEngine interface {
	Evaluate(ctx context.Context, tenantID string) (*models.SeasonState, error)
	SetOverride(ctx context.Context, tenantID string, season models.Season) (*models.SeasonState, error)
	ClearOverride(ctx context.Context, tenantID string) (*models.SeasonState, error)
}

// SeasonHandler handles season API requests
type SeasonHandler struct {
	engine SeasonEngine
}

// NewSeasonHandler creates a new season handler
func NewSeasonHandler(engine SeasonEngine) *SeasonHandler {
	return &SeasonHandler{
		engine: engine,
	}
}

// RegisterRoutes registers the season routes
func (h *SeasonHandler) RegisterRoutes(g *echo.Group) {
	season := g.Group("/season")
	season.GET("", h.Current)
	season.PUT("/override", h.SetOverride)
	season.DELETE("/override", h.ClearOverride)
}

// Current handles GET /season
func (h *SeasonHandler) Current(c echo.Context) error {
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

// SetOverride handles PUT /season/override. While the override is younger
// than the re-evaluation window, automatic classification is bypassed.
func (h *SeasonHandler) SetOverride(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.SeasonOverrideRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}
	if !req.Season.IsValid() {
		return BadRequest("unknown season '" + string(req.Season) + "'")
	}

	state, err := h.engine.SetOverride(ctx, tenantID, req.Season)
	if err != nil {
		return err
	}

	return SuccessResponse(c, state)
}

// ClearOverride handles DELETE /season/override
func (h *SeasonHandler) ClearOverride(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	state, err := h.engine.ClearOverride(ctx, tenantID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, state)
}
