package streak

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeDays struct {
	eventDays  []time.Time
	signalDays []time.Time
}

func (f *fakeDays) CompletedEventDays(_ context.Context, _ string) ([]time.Time, error) {
	return f.eventDays, nil
}

func (f *fakeDays) SignalDays(_ context.Context, _ string) ([]time.Time, error) {
	return f.signalDays, nil
}

type fakeStreakStore struct {
	state *models.StreakState
}

func (f *fakeStreakStore) Get(_ context.Context, _ string) (*models.StreakState, error) {
	return f.state, nil
}

func (f *fakeStreakStore) Upsert(_ context.Context, state *models.StreakState) error {
	f.state = state
	return nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestEvaluateUnionsEventsAndSignals(t *testing.T) {
	now := time.Now().UTC()
	days := &fakeDays{
		eventDays:  []time.Time{now},
		signalDays: []time.Time{now.AddDate(0, 0, -1), now.AddDate(0, 0, -2)},
	}
	store := &fakeStreakStore{}

	engine := NewEngine(noopLogger(), days, days, store, nil)

	state, err := engine.Evaluate(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 3, state.CurrentStreak, "signal-only days must count toward continuity")
	assert.Equal(t, 3, state.LongestStreak)
	assert.Zero(t, state.PreviousStreak)
	assert.Nil(t, state.ReleasedAt)
}

func TestEvaluateReleasesBrokenStreak(t *testing.T) {
	now := time.Now().UTC()
	days := &fakeDays{
		eventDays: []time.Time{now.AddDate(0, 0, -4), now.AddDate(0, 0, -5)},
	}
	store := &fakeStreakStore{state: &models.StreakState{
		TenantID:      "tenant-1",
		CurrentStreak: 2,
		LongestStreak: 2,
		ComputedAt:    now.AddDate(0, 0, -3),
	}}

	engine := NewEngine(noopLogger(), days, days, store, nil)

	state, err := engine.Evaluate(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Zero(t, state.CurrentStreak)
	assert.Equal(t, 2, state.PreviousStreak, "broken streak must be kept for forgiveness messaging")
	require.NotNil(t, state.ReleasedAt)
	assert.WithinDuration(t, now, *state.ReleasedAt, time.Minute)
	assert.Equal(t, 2, state.LongestStreak)
}

func TestEvaluatePreservesReleaseHistoryWhileActive(t *testing.T) {
	now := time.Now().UTC()
	released := now.AddDate(0, 0, -10)
	days := &fakeDays{eventDays: []time.Time{now}}
	store := &fakeStreakStore{state: &models.StreakState{
		TenantID:       "tenant-1",
		CurrentStreak:  0,
		LongestStreak:  6,
		PreviousStreak: 6,
		ReleasedAt:     &released,
		ComputedAt:     now.AddDate(0, 0, -1),
	}}

	engine := NewEngine(noopLogger(), days, days, store, nil)

	state, err := engine.Evaluate(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.CurrentStreak)
	assert.Equal(t, 6, state.PreviousStreak)
	require.NotNil(t, state.ReleasedAt)
	assert.True(t, released.Equal(*state.ReleasedAt))
	assert.Equal(t, 6, state.LongestStreak, "historic best comes from stored state until history beats it")
}
