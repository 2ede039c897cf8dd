package seasonstate

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

// Repository persists the per-tenant season singleton. The row is
// authoritative state, not a cache; overrides live only here.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new season state repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the season state for a tenant, nil when none exists yet
func (r *Repository) Get(ctx context.Context, tenantID string) (*models.SeasonState, error) {
	ctx, span := tracing.StartSpan(ctx, "seasonstate.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tenant_id", "season", "override", "override_set_at", "classified_at")
	sb.From("season_states")
	sb.Where(sb.Equal("tenant_id", tenantID))

	query, args := sb.Build()
	var state models.SeasonState
	if err := r.db.GetContext(ctx, &state, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get season state")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get season state")
	}

	return &state, nil
}

// Upsert writes the season state, replacing any existing row for the tenant
func (r *Repository) Upsert(ctx context.Context, state *models.SeasonState) error {
	ctx, span := tracing.StartSpan(ctx, "seasonstate.Repository.Upsert")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("season_states")
	sb.Cols("tenant_id", "season", "override", "override_set_at", "classified_at")
	sb.Values(state.TenantID, state.Season, state.Override, state.OverrideSetAt, state.ClassifiedAt)

	query, args := sb.Build()
	query += ` ON CONFLICT (tenant_id) DO UPDATE SET
		season = EXCLUDED.season,
		override = EXCLUDED.override,
		override_set_at = EXCLUDED.override_set_at,
		classified_at = EXCLUDED.classified_at`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": state.TenantID}).Error("Failed to upsert season state")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert season state")
	}

	return nil
}
