package season

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tuning"
)

// EventCounter reports how many completed interactions a tenant logged
// since a cutoff.
type EventCounter interface {
	CountCompletedSince(ctx context.Context, tenantID string, since time.Time) (int, error)
}

// StreakSource yields the tenant's current streak state.
type StreakSource interface {
	Evaluate(ctx context.Context, tenantID string) (*models.StreakState, error)
}

// HealthSource yields the tier-weighted network health aggregate.
type HealthSource interface {
	NetworkHealth(ctx context.Context, tenantID string) (*models.NetworkHealth, error)
}

// SeasonStore persists the per-tenant season singleton. Get returns nil
// without error when no state exists yet.
type SeasonStore interface {
	Get(ctx context.Context, tenantID string) (*models.SeasonState, error)
	Upsert(ctx context.Context, state *models.SeasonState) error
}

type Engine struct {
	logger     ectologger.Logger
	events     EventCounter
	streaks    StreakSource
	health     HealthSource
	store      SeasonStore
	classifier *Classifier
	tuning     tuning.Tuning
}

func NewEngine(logger ectologger.Logger, events EventCounter, streaks StreakSource, health HealthSource, store SeasonStore, t tuning.Tuning) *Engine {
	return &Engine{
		logger:     logger,
		events:     events,
		streaks:    streaks,
		health:     health,
		store:      store,
		classifier: NewClassifier(t),
		tuning:     t,
	}
}

// Evaluate returns the tenant's season. An override inside its
// re-evaluation window bypasses classification entirely; once the
// window lapses the stale override is dropped and classification runs
// fresh. The persisted state is authoritative between evaluations.
func (e *Engine) Evaluate(ctx context.Context, tenantID string) (*models.SeasonState, error) {
	ctx, span := tracing.StartSpan(ctx, "season.Engine.Evaluate")
	defer span.End()

	stored, err := e.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if stored != nil && stored.Override != nil {
		if stored.OverrideSetAt != nil && now.Sub(*stored.OverrideSetAt) < e.tuning.OverrideReevalWindow {
			return stored, nil
		}
		e.logger.WithContext(ctx).WithFields(map[string]any{
			"tenant_id": tenantID,
			"override":  string(*stored.Override),
		}).Debug("Season override lapsed, reclassifying")
	}

	return e.classify(ctx, tenantID, now)
}

// SetOverride pins the season until cleared or the re-evaluation window
// elapses. The classified season is kept underneath the override so a
// later clear does not lose it.
func (e *Engine) SetOverride(ctx context.Context, tenantID string, season models.Season) (*models.SeasonState, error) {
	ctx, span := tracing.StartSpan(ctx, "season.Engine.SetOverride")
	defer span.End()

	stored, err := e.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	state := stored
	if state == nil {
		state, err = e.classify(ctx, tenantID, now)
		if err != nil {
			return nil, err
		}
	}

	state.Override = &season
	state.OverrideSetAt = &now

	if err := e.store.Upsert(ctx, state); err != nil {
		return nil, err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"season":    string(season),
	}).Info("Season override set")

	return state, nil
}

// ClearOverride removes a manual override and reclassifies immediately.
func (e *Engine) ClearOverride(ctx context.Context, tenantID string) (*models.SeasonState, error) {
	ctx, span := tracing.StartSpan(ctx, "season.Engine.ClearOverride")
	defer span.End()

	return e.classify(ctx, tenantID, time.Now().UTC())
}

// classify gathers inputs, classifies and persists a fresh state with
// no override.
func (e *Engine) classify(ctx context.Context, tenantID string, now time.Time) (*models.SeasonState, error) {
	since := now.AddDate(0, 0, -e.tuning.SeasonWindowDays)
	count, err := e.events.CountCompletedSince(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}

	streak, err := e.streaks.Evaluate(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	health, err := e.health.NetworkHealth(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	inputs := Inputs{
		WindowEvents:  count,
		CurrentStreak: streak.CurrentStreak,
		NetworkHealth: health.Overall,
	}

	state := &models.SeasonState{
		TenantID:     tenantID,
		Season:       e.classifier.Classify(inputs),
		ClassifiedAt: now,
	}

	if err := e.store.Upsert(ctx, state); err != nil {
		return nil, err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":      tenantID,
		"season":         string(state.Season),
		"window_events":  inputs.WindowEvents,
		"current_streak": inputs.CurrentStreak,
		"network_health": inputs.NetworkHealth,
	}).Debug("Season classified")

	return state, nil
}
