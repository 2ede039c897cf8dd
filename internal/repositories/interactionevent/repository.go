package interactionevent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
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

const (
	// DefaultListLimit is the page size used when the caller does not ask
	// for one.
	DefaultListLimit = 100
	// MaxListLimit caps the page size regardless of what the caller asks for
	MaxListLimit = 500
)

// Repository handles interaction event persistence. Events are the raw
// facts every derived state is rebuilt from, so reads used by recomputation
// return rows in a stable chronological order.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new interaction event repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new event after confirming every referenced relationship
// exists for the tenant.
func (r *Repository) Create(ctx context.Context, event *models.InteractionEvent) (*models.InteractionEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.Create")
	defer span.End()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = time.Now().UTC()
	event.UpdatedAt = event.CreatedAt

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if err := r.verifyRelationships(ctx, tx, event.TenantID, event.RelationshipIDs.GetValue()); err != nil {
		return nil, err
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("interaction_events")
	sb.Cols("id", "tenant_id", "relationship_ids", "category", "status", "occurred_at", "duration", "vibe", "reflection", "created_at", "updated_at")
	sb.Values(event.ID, event.TenantID, event.RelationshipIDs, event.Category, event.Status, event.OccurredAt, event.Duration, event.Vibe, event.Reflection, event.CreatedAt, event.UpdatedAt)

	query, args := sb.Build()
	query += " ON CONFLICT (id) DO NOTHING"

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"event_id": event.ID}).Error("Failed to create interaction event")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create interaction event")
	}
	duplicate := false
	if rows, _ := result.RowsAffected(); rows == 0 {
		// Redelivered message carrying a client-supplied ID
		duplicate = true
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit interaction event")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create interaction event")
	}

	if duplicate {
		return r.Get(ctx, event.TenantID, event.ID)
	}
	return event, nil
}

// Get retrieves an event by ID
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.InteractionEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "relationship_ids", "category", "status", "occurred_at", "duration", "vibe", "reflection", "created_at", "updated_at")
	sb.From("interaction_events")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	var event models.InteractionEvent
	if err := r.db.GetContext(ctx, &event, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, fernerrors.NewNotFoundError("interaction event", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get interaction event")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get interaction event")
	}

	return &event, nil
}

// List retrieves events for a tenant, newest first. relationshipID and
// status are optional filters; a zero value means no filter.
func (r *Repository) List(ctx context.Context, tenantID, relationshipID string, status models.EventStatus, limit int) ([]*models.InteractionEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.List")
	defer span.End()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "relationship_ids", "category", "status", "occurred_at", "duration", "vibe", "reflection", "created_at", "updated_at")
	sb.From("interaction_events")
	sb.Where(sb.Equal("tenant_id", tenantID))
	if relationshipID != "" {
		sb.Where(fmt.Sprintf("relationship_ids @> %s::jsonb", sb.Var(containsArg(relationshipID))))
	}
	if status != "" {
		sb.Where(sb.Equal("status", status))
	}
	sb.OrderBy("occurred_at DESC", "id DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var events []*models.InteractionEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list interaction events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list interaction events")
	}

	return events, nil
}

// UpdateStatus sets the lifecycle status of an event. Transition legality is
// the caller's responsibility.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id string, status models.EventStatus) error {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.UpdateStatus")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("interaction_events")
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
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"event_id": id}).Error("Failed to update event status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update event status")
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return fernerrors.NewNotFoundError("interaction event", id)
	}

	return nil
}

// AttachReflection sets the reflection text on an event. The only mutation a
// completed event accepts.
func (r *Repository) AttachReflection(ctx context.Context, tenantID, id, reflection string) error {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.AttachReflection")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("interaction_events")
	ub.Set(
		ub.Assign("reflection", reflection),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"event_id": id}).Error("Failed to attach reflection")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to attach reflection")
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return fernerrors.NewNotFoundError("interaction event", id)
	}

	return nil
}

// Amend replaces the mutable facts of an event after confirming the new
// relationship references exist, and returns the updated row.
func (r *Repository) Amend(ctx context.Context, tenantID, id string, req *models.AmendEventRequest) (*models.InteractionEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.Amend")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	if err := r.verifyRelationships(ctx, tx, tenantID, req.RelationshipIDs); err != nil {
		return nil, err
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("interaction_events")
	ub.Set(
		ub.Assign("relationship_ids", database.NewJSONB(req.RelationshipIDs)),
		ub.Assign("category", req.Category),
		ub.Assign("occurred_at", req.OccurredAt),
		ub.Assign("duration", req.Duration),
		ub.Assign("vibe", req.Vibe),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("tenant_id", tenantID),
	)

	query, args := ub.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"event_id": id}).Error("Failed to amend interaction event")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to amend interaction event")
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, fernerrors.NewNotFoundError("interaction event", id)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit event amendment")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to amend interaction event")
	}

	return r.Get(ctx, tenantID, id)
}

// Delete removes an event row
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.Delete")
	defer span.End()

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("interaction_events")
	del.Where(
		del.Equal("id", id),
		del.Equal("tenant_id", tenantID),
	)

	query, args := del.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"event_id": id}).Error("Failed to delete interaction event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete interaction event")
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return fernerrors.NewNotFoundError("interaction event", id)
	}

	return nil
}

// ListCompleted retrieves the completed events referencing a relationship in
// stable chronological order. since is optional.
func (r *Repository) ListCompleted(ctx context.Context, tenantID, relationshipID string, since *time.Time) ([]*models.InteractionEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.ListCompleted")
	defer span.End()

	query := `
		SELECT id, tenant_id, relationship_ids, category, status, occurred_at, duration, vibe, reflection, created_at, updated_at
		FROM interaction_events
		WHERE tenant_id = $1
		AND status = $2
		AND relationship_ids @> $3::jsonb
	`
	args := []any{tenantID, models.EventStatusCompleted, containsArg(relationshipID)}
	if since != nil {
		query += " AND occurred_at >= $4"
		args = append(args, *since)
	}
	query += " ORDER BY occurred_at ASC, id ASC"

	var events []*models.InteractionEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list completed events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list completed events")
	}

	return events, nil
}

// LatestCompletedAt returns when the relationship last had a completed
// event, or nil when it never has.
func (r *Repository) LatestCompletedAt(ctx context.Context, tenantID, relationshipID string) (*time.Time, error) {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.LatestCompletedAt")
	defer span.End()

	query := `
		SELECT MAX(occurred_at)
		FROM interaction_events
		WHERE tenant_id = $1
		AND status = $2
		AND relationship_ids @> $3::jsonb
	`

	var latest sql.NullTime
	if err := r.db.GetContext(ctx, &latest, query, tenantID, models.EventStatusCompleted, containsArg(relationshipID)); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get latest completed event time")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get latest completed event time")
	}

	if !latest.Valid {
		return nil, nil
	}
	at := latest.Time.UTC()
	return &at, nil
}

// CompletedEventDays returns the distinct calendar days carrying at least
// one completed event for the tenant.
func (r *Repository) CompletedEventDays(ctx context.Context, tenantID string) ([]time.Time, error) {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.CompletedEventDays")
	defer span.End()

	query := `
		SELECT DISTINCT date_trunc('day', occurred_at) AS day
		FROM interaction_events
		WHERE tenant_id = $1
		AND status = $2
		ORDER BY day ASC
	`

	var days []time.Time
	if err := r.db.SelectContext(ctx, &days, query, tenantID, models.EventStatusCompleted); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list completed event days")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list completed event days")
	}

	return days, nil
}

// CountCompletedSince counts the tenant's completed events at or after the
// given time.
func (r *Repository) CountCompletedSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.CountCompletedSince")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("interaction_events")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("status", models.EventStatusCompleted),
		sb.GreaterEqualThan("occurred_at", since),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count completed events")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count completed events")
	}

	return count, nil
}

// HasCompletedSince reports whether the relationship has a completed event
// strictly after the given time.
func (r *Repository) HasCompletedSince(ctx context.Context, tenantID, relationshipID string, after time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.HasCompletedSince")
	defer span.End()

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM interaction_events
			WHERE tenant_id = $1
			AND status = $2
			AND relationship_ids @> $3::jsonb
			AND occurred_at > $4
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tenantID, models.EventStatusCompleted, containsArg(relationshipID), after); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check for completed events")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check for completed events")
	}

	return exists, nil
}

// HasCompletedInTierSince reports whether any relationship in the tier has a
// completed event strictly after the given time.
func (r *Repository) HasCompletedInTierSince(ctx context.Context, tenantID string, tier models.Tier, after time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "interactionevent.Repository.HasCompletedInTierSince")
	defer span.End()

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM interaction_events e
			JOIN relationships r
				ON r.tenant_id = e.tenant_id
				AND e.relationship_ids @> jsonb_build_array(r.id)
			WHERE e.tenant_id = $1
			AND r.tier = $2
			AND e.status = $3
			AND e.occurred_at > $4
		)
	`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tenantID, tier, models.EventStatusCompleted, after); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check for completed events in tier")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check for completed events in tier")
	}

	return exists, nil
}

// verifyRelationships confirms every referenced relationship exists for the
// tenant, naming the first missing one.
func (r *Repository) verifyRelationships(ctx context.Context, tx database.Tx, tenantID string, ids []string) error {
	if len(ids) == 0 {
		return fernerrors.NewValidationError("event must reference at least one relationship").AddField("relationship_ids")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id")
	sb.From("relationships")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", idsToAny(ids)...),
	)

	query, args := sb.Build()
	var found []string
	if err := tx.SelectContext(ctx, &found, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to verify event relationships")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to verify event relationships")
	}

	known := make(map[string]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	for _, id := range ids {
		if !known[id] {
			return fernerrors.NewNotFoundError("relationship", id)
		}
	}

	return nil
}

// containsArg renders the single-element jsonb array used for @> containment
func containsArg(relationshipID string) string {
	b, _ := json.Marshal([]string{relationshipID})
	return string(b)
}

func idsToAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
