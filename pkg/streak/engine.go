package streak

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// EventDays lists the calendar days carrying at least one completed
// interaction event.
type EventDays interface {
	CompletedEventDays(ctx context.Context, tenantID string) ([]time.Time, error)
}

// SignalDays lists the calendar days carrying at least one activity signal
// (capacity check-in or journal entry).
type SignalDays interface {
	SignalDays(ctx context.Context, tenantID string) ([]time.Time, error)
}

// StreakStore persists the per-tenant streak singleton. Get returns nil
// without error when no state exists yet.
type StreakStore interface {
	Get(ctx context.Context, tenantID string) (*models.StreakState, error)
	Upsert(ctx context.Context, state *models.StreakState) error
}

// Notifier publishes streak lifecycle events to the bus. May be nil.
type Notifier interface {
	EmitStreakReleased(ctx context.Context, state *models.StreakState) error
}

// Engine recomputes the streak from the union of qualifying days and keeps
// the forgiveness data: when a positive streak drops to zero, the previous
// length and release date are persisted so the lapse can be messaged
// gently instead of as a raw reset.
type Engine struct {
	logger     ectologger.Logger
	eventDays  EventDays
	signalDays SignalDays
	store      StreakStore
	notifier   Notifier
	calculator *Calculator
}

// NewEngine creates a new streak engine
func NewEngine(logger ectologger.Logger, eventDays EventDays, signalDays SignalDays, store StreakStore, notifier Notifier) *Engine {
	return &Engine{
		logger:     logger,
		eventDays:  eventDays,
		signalDays: signalDays,
		store:      store,
		notifier:   notifier,
		calculator: NewCalculator(),
	}
}

// Evaluate recomputes the streak from raw history, applies forgiveness
// transitions against the stored state, persists and returns the result.
func (e *Engine) Evaluate(ctx context.Context, tenantID string) (*models.StreakState, error) {
	ctx, span := tracing.StartSpan(ctx, "streak.Engine.Evaluate")
	defer span.End()

	eventDays, err := e.eventDays.CompletedEventDays(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	signalDays, err := e.signalDays.SignalDays(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	days := append(eventDays, signalDays...)

	now := time.Now().UTC()
	current := e.calculator.CurrentStreak(days, now)
	longest := e.calculator.LongestRun(days)

	stored, err := e.store.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	state := &models.StreakState{
		TenantID:      tenantID,
		CurrentStreak: current,
		LongestStreak: longest,
		ComputedAt:    now,
	}

	released := false
	if stored != nil {
		state.PreviousStreak = stored.PreviousStreak
		state.ReleasedAt = stored.ReleasedAt

		// Longest-ever is a high-water mark; deleting old events never lowers it.
		if stored.LongestStreak > state.LongestStreak {
			state.LongestStreak = stored.LongestStreak
		}

		if stored.CurrentStreak > 0 && current == 0 {
			releasedAt := now
			state.PreviousStreak = stored.CurrentStreak
			state.ReleasedAt = &releasedAt
			released = true
			e.logger.WithContext(ctx).WithFields(map[string]any{
				"tenant_id":       tenantID,
				"previous_streak": stored.CurrentStreak,
			}).Info("Streak released")
		}
	}

	if err := e.store.Upsert(ctx, state); err != nil {
		return nil, err
	}

	if released && e.notifier != nil {
		if err := e.notifier.EmitStreakReleased(ctx, state); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("Streak released but event not published")
		}
	}

	return state, nil
}
