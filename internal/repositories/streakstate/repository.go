package streakstate

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

// Repository persists the per-tenant streak singleton
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new streak state repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the streak state for a tenant, nil when none exists yet
func (r *Repository) Get(ctx context.Context, tenantID string) (*models.StreakState, error) {
	ctx, span := tracing.StartSpan(ctx, "streakstate.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tenant_id", "current_streak", "longest_streak", "previous_streak", "released_at", "computed_at")
	sb.From("streak_states")
	sb.Where(sb.Equal("tenant_id", tenantID))

	query, args := sb.Build()
	var state models.StreakState
	if err := r.db.GetContext(ctx, &state, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get streak state")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get streak state")
	}

	return &state, nil
}

// Upsert writes the streak state, replacing any existing row for the tenant
func (r *Repository) Upsert(ctx context.Context, state *models.StreakState) error {
	ctx, span := tracing.StartSpan(ctx, "streakstate.Repository.Upsert")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("streak_states")
	sb.Cols("tenant_id", "current_streak", "longest_streak", "previous_streak", "released_at", "computed_at")
	sb.Values(state.TenantID, state.CurrentStreak, state.LongestStreak, state.PreviousStreak, state.ReleasedAt, state.ComputedAt)

	query, args := sb.Build()
	query += ` ON CONFLICT (tenant_id) DO UPDATE SET
		current_streak = EXCLUDED.current_streak,
		longest_streak = EXCLUDED.longest_streak,
		previous_streak = EXCLUDED.previous_streak,
		released_at = EXCLUDED.released_at,
		computed_at = EXCLUDED.computed_at`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": state.TenantID}).Error("Failed to upsert streak state")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert streak state")
	}

	return nil
}
