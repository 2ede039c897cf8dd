package insight

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DefaultListLimit is the page size used when the caller does not ask for one
const DefaultListLimit = 100

// Repository handles insight persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new insight repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new insight
func (r *Repository) Create(ctx context.Context, insight *models.Insight) error {
	ctx, span := tracing.StartSpan(ctx, "insight.Repository.Create")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("insights")
	sb.Cols("id", "tenant_id", "rule_id", "relationship_id", "tier", "status", "generated_at", "expires_at", "updated_at")
	sb.Values(insight.ID, insight.TenantID, insight.RuleID, insight.RelationshipID, insight.Tier, insight.Status, insight.GeneratedAt, insight.ExpiresAt, insight.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"insight_id": insight.ID}).Error("Failed to create insight")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create insight")
	}

	return nil
}

// Get retrieves an insight by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Insight, error) {
	ctx, span := tracing.StartSpan(ctx, "insight.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "rule_id", "relationship_id", "tier", "status", "generated_at", "expires_at", "updated_at")
	sb.From("insights")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var insight models.Insight
	if err := r.db.GetContext(ctx, &insight, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, fernerrors.NewNotFoundError("insight", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get insight")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get insight")
	}

	return &insight, nil
}

// List retrieves insights for a tenant, newest first. status is an optional
// filter.
func (r *Repository) List(ctx context.Context, tenantID string, status models.InsightStatus, limit int) ([]*models.Insight, error) {
	ctx, span := tracing.StartSpan(ctx, "insight.Repository.List")
	defer span.End()

	if limit <= 0 {
		limit = DefaultListLimit
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "rule_id", "relationship_id", "tier", "status", "generated_at", "expires_at", "updated_at")
	sb.From("insights")
	sb.Where(sb.Equal("tenant_id", tenantID))
	if status != "" {
		sb.Where(sb.Equal("status", status))
	}
	sb.OrderBy("generated_at DESC", "id DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var insights []*models.Insight
	if err := r.db.SelectContext(ctx, &insights, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list insights")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list insights")
	}

	return insights, nil
}

// ListNonTerminal retrieves the open (unseen or seen) insights for a tenant
// in a stable order for reconciliation.
func (r *Repository) ListNonTerminal(ctx context.Context, tenantID string) ([]*models.Insight, error) {
	ctx, span := tracing.StartSpan(ctx, "insight.Repository.ListNonTerminal")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "rule_id", "relationship_id", "tier", "status", "generated_at", "expires_at", "updated_at")
	sb.From("insights")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("status", models.InsightStatusUnseen, models.InsightStatusSeen),
	)
	sb.OrderBy("generated_at ASC", "id ASC")

	query, args := sb.Build()
	var insights []*models.Insight
	if err := r.db.SelectContext(ctx, &insights, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list open insights")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list open insights")
	}

	return insights, nil
}

// UpdateStatus sets the lifecycle status of an insight. Transition legality
// is the caller's responsibility.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id string, status models.InsightStatus) error {
	ctx, span := tracing.StartSpan(ctx, "insight.Repository.UpdateStatus")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("insights")
	ub.Set(
		ub.Assign("status", status),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"insight_id": id}).Error("Failed to update insight status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update insight status")
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return fernerrors.NewNotFoundError("insight", id)
	}

	return nil
}

// ListOpenTenants returns the tenants holding at least one open insight, for
// the background sweep.
func (r *Repository) ListOpenTenants(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "insight.Repository.ListOpenTenants")
	defer span.End()

	query := `
		SELECT DISTINCT tenant_id
		FROM insights
		WHERE status IN ($1, $2)
		ORDER BY tenant_id ASC
	`

	var tenants []string
	if err := r.db.SelectContext(ctx, &tenants, query, models.InsightStatusUnseen, models.InsightStatusSeen); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list tenants with open insights")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tenants with open insights")
	}

	return tenants, nil
}
