package scorerecord

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// Repository handles score checkpoint persistence. Absence of a row means
// "not yet computed", so Get returns nil without error for missing records.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new score record repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the score checkpoint for one relationship, nil when none
// exists yet.
func (r *Repository) Get(ctx context.Context, tenantID, relationshipID string) (*models.ScoreRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "scorerecord.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("relationship_id", "tenant_id", "score", "last_event_at", "computed_at")
	sb.From("score_records")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("relationship_id", relationshipID),
	)

	query, args := sb.Build()
	var record models.ScoreRecord
	if err := r.db.GetContext(ctx, &record, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get score record")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get score record")
	}

	return &record, nil
}

// Upsert writes a score checkpoint, replacing any existing one for the
// relationship.
func (r *Repository) Upsert(ctx context.Context, record *models.ScoreRecord) error {
	ctx, span := tracing.StartSpan(ctx, "scorerecord.Repository.Upsert")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("score_records")
	sb.Cols("relationship_id", "tenant_id", "score", "last_event_at", "computed_at")
	sb.Values(record.RelationshipID, record.TenantID, record.Score, record.LastEventAt, record.ComputedAt)

	query, args := sb.Build()
	query += ` ON CONFLICT (tenant_id, relationship_id) DO UPDATE SET
		score = EXCLUDED.score,
		last_event_at = EXCLUDED.last_event_at,
		computed_at = EXCLUDED.computed_at`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"relationship_id": record.RelationshipID}).Error("Failed to upsert score record")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert score record")
	}

	return nil
}

// ListByTenant retrieves every score checkpoint for a tenant
func (r *Repository) ListByTenant(ctx context.Context, tenantID string) ([]*models.ScoreRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "scorerecord.Repository.ListByTenant")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("relationship_id", "tenant_id", "score", "last_event_at", "computed_at")
	sb.From("score_records")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("relationship_id ASC")

	query, args := sb.Build()
	var records []*models.ScoreRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list score records")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list score records")
	}

	return records, nil
}
