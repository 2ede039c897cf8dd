package activitysignal

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DefaultListLimit is the page size used when the caller does not ask for one
const DefaultListLimit = 100

// Repository handles activity signal persistence. Signals are append-only;
// they feed streak continuity and nothing else.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new activity signal repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new activity signal
func (r *Repository) Create(ctx context.Context, signal *models.ActivitySignal) (*models.ActivitySignal, error) {
	ctx, span := tracing.StartSpan(ctx, "activitysignal.Repository.Create")
	defer span.End()

	if signal.ID == "" {
		signal.ID = uuid.New().String()
	}
	signal.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("activity_signals")
	sb.Cols("id", "tenant_id", "kind", "occurred_at", "created_at")
	sb.Values(signal.ID, signal.TenantID, signal.Kind, signal.OccurredAt, signal.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"signal_id": signal.ID}).Error("Failed to create activity signal")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create activity signal")
	}

	return signal, nil
}

// List retrieves signals for a tenant, newest first. kind is an optional
// filter.
func (r *Repository) List(ctx context.Context, tenantID string, kind models.SignalKind, limit int) ([]*models.ActivitySignal, error) {
	ctx, span := tracing.StartSpan(ctx, "activitysignal.Repository.List")
	defer span.End()

	if limit <= 0 {
		limit = DefaultListLimit
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "kind", "occurred_at", "created_at")
	sb.From("activity_signals")
	sb.Where(sb.Equal("tenant_id", tenantID))
	if kind != "" {
		sb.Where(sb.Equal("kind", kind))
	}
	sb.OrderBy("occurred_at DESC", "id DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var signals []*models.ActivitySignal
	if err := r.db.SelectContext(ctx, &signals, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list activity signals")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list activity signals")
	}

	return signals, nil
}

// SignalDays returns the distinct calendar days carrying at least one
// signal for the tenant.
func (r *Repository) SignalDays(ctx context.Context, tenantID string) ([]time.Time, error) {
	ctx, span := tracing.StartSpan(ctx, "activitysignal.Repository.SignalDays")
	defer span.End()

	query := `
		SELECT DISTINCT date_trunc('day', occurred_at) AS day
		FROM activity_signals
		WHERE tenant_id = $1
		ORDER BY day ASC
	`

	var days []time.Time
	if err := r.db.SelectContext(ctx, &days, query, tenantID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list signal days")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list signal days")
	}

	return days, nil
}
