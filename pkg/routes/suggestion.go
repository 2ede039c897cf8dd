package routes

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
)

// SuggestionEngine generates the ephemeral ranked suggestion list
type SuggestionEngine interface {
	Generate(ctx context.Context, tenantID string) ([]models.Suggestion, error)
}

// InsightPromoter persists a suggestion as a durable insight
type InsightPromoter interface {
	Promote(ctx context.Context, tenantID string, req *models.PromoteSuggestionRequest) (*models.Insight, error)
}

// SuggestionHandler handles suggestion API requests. Suggestions are
// regenerated per call and never persisted; only explicit promotion writes
// anything.
type SuggestionHandler struct {
	engine   SuggestionEngine
	promoter InsightPromoter
}

// NewSuggestionHandler creates a new suggestion handler
func NewSuggestionHandler(engine SuggestionEngine, promoter InsightPromoter) *SuggestionHandler {
	return &SuggestionHandler{
		engine:   engine,
		promoter: promoter,
	}
}

// RegisterRoutes registers the suggestion routes
func (h *SuggestionHandler) RegisterRoutes(g *echo.Group) {
	suggestions := g.Group("/suggestions")
	suggestions.GET("", h.List)
	suggestions.POST("/promote", h.Promote)
}

// SuggestionListResponse carries one evaluation pass
type SuggestionListResponse struct {
	Suggestions []models.Suggestion `json:"suggestions"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// List handles GET /suggestions
func (h *SuggestionHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	suggestions, err := h.engine.Generate(ctx, tenantID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, SuggestionListResponse{
		Suggestions: suggestions,
		GeneratedAt: time.Now().UTC(),
	})
}

// Promote handles POST /suggestions/promote
func (h *SuggestionHandler) Promote(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.PromoteSuggestionRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}

	insight, err := h.promoter.Promote(ctx, tenantID, &req)
	if err != nil {
		return err
	}

	return CreatedResponse(c, insight)
}
