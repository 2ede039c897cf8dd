package relationship

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles relationship persistence. Relationships are never
// deleted here; deletion is a host concern outside the engine.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new relationship repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new relationship
func (r *Repository) Create(ctx context.Context, relationship *models.Relationship) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Create")
	defer span.End()

	if relationship.ID == "" {
		relationship.ID = uuid.New().String()
	}
	relationship.CreatedAt = time.Now().UTC()
	relationship.UpdatedAt = relationship.CreatedAt

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("relationships")
	sb.Cols("id", "tenant_id", "name", "tier", "archetype", "created_at", "updated_at")
	sb.Values(relationship.ID, relationship.TenantID, relationship.Name, relationship.Tier, relationship.Archetype, relationship.CreatedAt, relationship.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"relationship_id": relationship.ID}).Error("Failed to create relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create relationship")
	}

	return relationship, nil
}

// Get retrieves a relationship by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "name", "tier", "archetype", "created_at", "updated_at")
	sb.From("relationships")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var relationship models.Relationship
	if err := r.db.GetContext(ctx, &relationship, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, fernerrors.NewNotFoundError("relationship", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship")
	}

	return &relationship, nil
}

// List retrieves every relationship for a tenant in a stable order
func (r *Repository) List(ctx context.Context, tenantID string) ([]*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "name", "tier", "archetype", "created_at", "updated_at")
	sb.From("relationships")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("name ASC", "id ASC")

	query, args := sb.Build()
	var relationships []*models.Relationship
	if err := r.db.SelectContext(ctx, &relationships, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list relationships")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}

	return relationships, nil
}

// Update applies a partial update inside a transaction and returns the
// updated relationship.
func (r *Repository) Update(ctx context.Context, tenantID, id string, req *models.UpdateRelationshipRequest) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Update")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "name", "tier", "archetype", "created_at", "updated_at")
	sb.From("relationships")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var relationship models.Relationship
	if err := tx.GetContext(ctx, &relationship, query+" FOR UPDATE", args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, fernerrors.NewNotFoundError("relationship", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get relationship for update")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update relationship")
	}

	if req.Name != nil {
		relationship.Name = *req.Name
	}
	if req.Tier != nil {
		relationship.Tier = *req.Tier
	}
	if req.Archetype != nil {
		relationship.Archetype = *req.Archetype
	}
	relationship.UpdatedAt = time.Now().UTC()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("relationships")
	ub.Set(
		ub.Assign("name", relationship.Name),
		ub.Assign("tier", relationship.Tier),
		ub.Assign("archetype", relationship.Archetype),
		ub.Assign("updated_at", relationship.UpdatedAt),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
	)

	query, args = ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update relationship")
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit relationship update")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update relationship")
	}

	return &relationship, nil
}
