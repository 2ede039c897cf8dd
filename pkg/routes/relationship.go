package routes

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
)

// RelationshipRepo is the slice of the relationship repository the handler needs
type RelationshipRepo interface {
	Create(ctx context.Context, relationship *models.Relationship) (*models.Relationship, error)
	Get(ctx context.Context, tenantID, id string) (*models.Relationship, error)
	List(ctx context.Context, tenantID string) ([]*models.Relationship, error)
	Update(ctx context.Context, tenantID, id string, req *models.UpdateRelationshipRequest) (*models.Relationship, error)
}

// ScoreRecomputer rebuilds a relationship's score checkpoint from history
type ScoreRecomputer interface {
	RecomputeScore(ctx context.Context, tenantID, relationshipID string) (*models.ScoreRecord, error)
}

// RelationshipHandler handles relationship API requests. The engine never
// deletes a relationship, so there is no delete route.
type RelationshipHandler struct {
	repo   RelationshipRepo
	scores ScoreRecomputer
	logger ectologger.Logger
}

// NewRelationshipHandler creates a new relationship handler
func NewRelationshipHandler(repo RelationshipRepo, scores ScoreRecomputer, logger ectologger.Logger) *RelationshipHandler {
	return &RelationshipHandler{
		repo:   repo,
		scores: scores,
		logger: logger,
	}
}

// RegisterRoutes registers the relationship routes
func (h *RelationshipHandler) RegisterRoutes(g *echo.Group) {
	relationships := g.Group("/relationships")
	relationships.POST("", h.Create)
	relationships.GET("", h.List)
	relationships.GET("/:id", h.Get)
	relationships.PUT("/:id", h.Update)
}

// Create handles POST /relationships
func (h *RelationshipHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	var req models.CreateRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return BadRequest(err.Error())
	}
	if !req.Tier.IsValid() {
		return BadRequest("unknown tier '" + string(req.Tier) + "'")
	}
	if !req.Archetype.IsValid() {
		return BadRequest("unknown archetype '" + string(req.Archetype) + "'")
	}

	relationship := &models.Relationship{
		TenantID:  tenantID,
		Name:      req.Name,
		Tier:      req.Tier,
		Archetype: req.Archetype,
	}

	created, err := h.repo.Create(ctx, relationship)
	if err != nil {
		return err
	}

	return CreatedResponse(c, created)
}

// List handles GET /relationships
func (h *RelationshipHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	relationships, err := h.repo.List(ctx, tenantID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, relationships)
}

// Get handles GET /relationships/:id
func (h *RelationshipHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	relationship, err := h.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, relationship)
}

// Update handles PUT /relationships/:id. Changing tier or archetype changes
// scoring parameters, so the cached score is rebuilt from history afterward.
func (h *RelationshipHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	tenantID, err := GetTenantID(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var req models.UpdateRelationshipRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if req.Tier != nil && !req.Tier.IsValid() {
		return BadRequest("unknown tier '" + string(*req.Tier) + "'")
	}
	if req.Archetype != nil && !req.Archetype.IsValid() {
		return BadRequest("unknown archetype '" + string(*req.Archetype) + "'")
	}

	updated, err := h.repo.Update(ctx, tenantID, id, &req)
	if err != nil {
		return err
	}

	if req.Tier != nil || req.Archetype != nil {
		if _, err := h.scores.RecomputeScore(ctx, tenantID, id); err != nil {
			h.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"relationship_id": id,
			}).Error("Failed to recompute score after tier change")
			return err
		}
	}

	return SuccessResponse(c, updated)
}
