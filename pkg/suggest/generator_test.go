package suggest

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tuning"
)

type fakeRelationshipStore struct {
	relationships []*models.Relationship
	calls         int
}

func (f *fakeRelationshipStore) List(_ context.Context, _ string) ([]*models.Relationship, error) {
	f.calls++
	return f.relationships, nil
}

type fakeEventStore struct {
	latest map[string]*time.Time
	window map[string][]*models.InteractionEvent
}

func (f *fakeEventStore) ListCompleted(_ context.Context, _, relationshipID string, _ *time.Time) ([]*models.InteractionEvent, error) {
	return f.window[relationshipID], nil
}

func (f *fakeEventStore) LatestCompletedAt(_ context.Context, _, relationshipID string) (*time.Time, error) {
	return f.latest[relationshipID], nil
}

type fakeScoreSource struct {
	scores map[string]float64
}

func (f *fakeScoreSource) CurrentScore(_ context.Context, _, relationshipID string) (*models.ScoreRecord, float64, error) {
	return &models.ScoreRecord{RelationshipID: relationshipID}, f.scores[relationshipID], nil
}

type fakeSeasonSource struct {
	season models.Season
}

func (f *fakeSeasonSource) Evaluate(_ context.Context, tenantID string) (*models.SeasonState, error) {
	return &models.SeasonState{TenantID: tenantID, Season: f.season, ClassifiedAt: time.Now().UTC()}, nil
}

type fakeCache struct {
	data map[string]string
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	return f.data[key], nil
}

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.data[key] = value.(string)
	return nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func relationship(id string, tier models.Tier, createdDaysAgo int) *models.Relationship {
	return &models.Relationship{
		ID:        id,
		TenantID:  "tenant-1",
		Name:      "Friend " + id,
		Tier:      tier,
		Archetype: models.ArchetypeAnchor,
		CreatedAt: time.Now().UTC().AddDate(0, 0, -createdDaysAgo),
	}
}

func daysAgo(n int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, -n)
	return &t
}

func windowEvents(category models.InteractionCategory, count int) []*models.InteractionEvent {
	events := make([]*models.InteractionEvent, 0, count)
	for i := 0; i < count; i++ {
		events = append(events, &models.InteractionEvent{
			Category:   category,
			Status:     models.EventStatusCompleted,
			OccurredAt: time.Now().UTC().AddDate(0, 0, -i),
		})
	}
	return events
}

func newTestGenerator(rels *fakeRelationshipStore, events *fakeEventStore, scores *fakeScoreSource, seasons *fakeSeasonSource, cache Cache, t tuning.Tuning) *Generator {
	return NewGenerator(noopLogger(), rels, events, scores, seasons, cache, t, DefaultConfig())
}

func TestGenerateEmitsHighDriftPastHighFactor(t *testing.T) {
	// Close tier expects contact every 7 days; 20 elapsed days clears
	// the 7x2.5 bar.
	rels := &fakeRelationshipStore{relationships: []*models.Relationship{relationship("r1", models.TierClose, 60)}}
	events := &fakeEventStore{latest: map[string]*time.Time{"r1": daysAgo(20)}}
	generator := newTestGenerator(rels, events, &fakeScoreSource{}, &fakeSeasonSource{season: models.SeasonBalanced}, nil, tuning.Default())

	suggestions, err := generator.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.ReasonHighDrift, suggestions[0].Reason)
	assert.Equal(t, 7, suggestions[0].ExpectedDays)
	assert.Equal(t, 20, suggestions[0].ActualDays)
}

func TestGenerateEmitsDriftBetweenFactors(t *testing.T) {
	// 12 days is past 7x1.5 but short of 7x2.5.
	rels := &fakeRelationshipStore{relationships: []*models.Relationship{relationship("r1", models.TierClose, 60)}}
	events := &fakeEventStore{latest: map[string]*time.Time{"r1": daysAgo(12)}}
	generator := newTestGenerator(rels, events, &fakeScoreSource{}, &fakeSeasonSource{season: models.SeasonBalanced}, nil, tuning.Default())

	suggestions, err := generator.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.ReasonDrift, suggestions[0].Reason)
}

func TestGenerateDriftsFromCreationWhenNeverContacted(t *testing.T) {
	rels := &fakeRelationshipStore{relationships: []*models.Relationship{relationship("r1", models.TierClose, 20)}}
	events := &fakeEventStore{}
	generator := newTestGenerator(rels, events, &fakeScoreSource{}, &fakeSeasonSource{season: models.SeasonBalanced}, nil, tuning.Default())

	suggestions, err := generator.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.ReasonHighDrift, suggestions[0].Reason)
	assert.Nil(t, suggestions[0].LastInteraction)
}

func TestGenerateQuietWhenWithinCadence(t *testing.T) {
	rels := &fakeRelationshipStore{relationships: []*models.Relationship{relationship("r1", models.TierClose, 60)}}
	events := &fakeEventStore{
		latest: map[string]*time.Time{"r1": daysAgo(2)},
		window: map[string][]*models.InteractionEvent{"r1": windowEvents(models.CategoryHangout, 1)},
	}
	generator := newTestGenerator(rels, events, &fakeScoreSource{}, &fakeSeasonSource{season: models.SeasonBalanced}, nil, tuning.Default())

	suggestions, err := generator.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, suggestions)
}

func TestGenerateEmitsTierMismatchOnTightCadence(t *testing.T) {
	// Four interactions in the 14-day window implies a 3.5-day cadence,
	// inside the close-tier interval, on a community relationship.
	rels := &fakeRelationshipStore{relationships: []*models.Relationship{relationship("r1", models.TierCommunity, 60)}}
	events := &fakeEventStore{
		latest: map[string]*time.Time{"r1": daysAgo(1)},
		window: map[string][]*models.InteractionEvent{"r1": windowEvents(models.CategoryHangout, 4)},
	}
	generator := newTestGenerator(rels, events, &fakeScoreSource{}, &fakeSeasonSource{season: models.SeasonBalanced}, nil, tuning.Default())

	suggestions, err := generator.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.ReasonTierMismatch, suggestions[0].Reason)
}

func TestGenerateEmitsDeepenOnShallowHighScore(t *testing.T) {
	rels := &fakeRelationshipStore{relationships: []*models.Relationship{relationship("r1", models.TierInner, 60)}}
	events := &fakeEventStore{
		latest: map[string]*time.Time{"r1": daysAgo(1)},
		window: map[string][]*models.InteractionEvent{"r1": windowEvents(models.CategoryTextCall, 4)},
	}
	scores := &fakeScoreSource{scores: map[string]float64{"r1": 75}}
	generator := newTestGenerator(rels, events, scores, &fakeSeasonSource{season: models.SeasonBalanced}, nil, tuning.Default())

	suggestions, err := generator.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.ReasonDeepen, suggestions[0].Reason)
}

func TestGenerateEmitsMomentumOnBurst(t *testing.T) {
	// Inner tier has no tighter tier to mismatch against, and a low
	// score keeps deepen quiet, so the burst reads as momentum.
	rels := &fakeRelationshipStore{relationships: []*models.Relationship{relationship("r1", models.TierInner, 60)}}
	events := &fakeEventStore{
		latest: map[string]*time.Time{"r1": daysAgo(1)},
		window: map[string][]*models.InteractionEvent{"r1": windowEvents(models.CategoryHangout, 3)},
	}
	generator := newTestGenerator(rels, events, &fakeScoreSource{}, &fakeSeasonSource{season: models.SeasonBalanced}, nil, tuning.Default())

	suggestions, err := generator.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, models.ReasonMomentum, suggestions[0].Reason)
}

func TestGenerateRanksBySeverityThenTightness(t *testing.T) {
	rels := &fakeRelationshipStore{relationships: []*models.Relationship{
		relationship("mild", models.TierClose, 60),
		relationship("severe", models.TierCommunity, 60),
		relationship("tight", models.TierInner, 60),
	}}
	events := &fakeEventStore{latest: map[string]*time.Time{
		"mild":   daysAgo(12),  // severity 12/7
		"severe": daysAgo(150), // severity 150/30
		"tight":  daysAgo(12),  // severity 12/3
	}}
	generator := newTestGenerator(rels, events, &fakeScoreSource{}, &fakeSeasonSource{season: models.SeasonBalanced}, nil, tuning.Default())

	suggestions, err := generator.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, suggestions, 3)
	assert.Equal(t, "severe", suggestions[0].RelationshipID)
	assert.Equal(t, "tight", suggestions[1].RelationshipID)
	assert.Equal(t, "mild", suggestions[2].RelationshipID)
}

func TestGenerateRotatesRecentlySuggested(t *testing.T) {
	// Identical severity and tier; the relationship suggested an hour
	// ago yields its slot to the one never suggested.
	created := time.Now().UTC().AddDate(0, 0, -30)
	a := relationship("a", models.TierClose, 0)
	a.CreatedAt = created
	b := relationship("b", models.TierClose, 0)
	b.CreatedAt = created

	cache := &fakeCache{data: map[string]string{
		suggestedKey("tenant-1", "a"): time.Now().UTC().Add(-time.Hour).Format(time.RFC3339Nano),
	}}
	rels := &fakeRelationshipStore{relationships: []*models.Relationship{a, b}}
	generator := newTestGenerator(rels, &fakeEventStore{}, &fakeScoreSource{}, &fakeSeasonSource{season: models.SeasonBalanced}, cache, tuning.Default())

	suggestions, err := generator.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "b", suggestions[0].RelationshipID)
	assert.Equal(t, "a", suggestions[1].RelationshipID)

	// Both emissions refresh the rotation marker.
	assert.NotEmpty(t, cache.data[suggestedKey("tenant-1", "b")])
}

func TestGenerateCapsAtMaxSuggestions(t *testing.T) {
	custom := tuning.Default()
	custom.MaxSuggestions = 2

	rels := &fakeRelationshipStore{relationships: []*models.Relationship{
		relationship("r1", models.TierClose, 60),
		relationship("r2", models.TierClose, 60),
		relationship("r3", models.TierClose, 60),
	}}
	events := &fakeEventStore{latest: map[string]*time.Time{
		"r1": daysAgo(40),
		"r2": daysAgo(30),
		"r3": daysAgo(20),
	}}
	generator := newTestGenerator(rels, events, &fakeScoreSource{}, &fakeSeasonSource{season: models.SeasonBalanced}, nil, custom)

	suggestions, err := generator.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "r1", suggestions[0].RelationshipID)
	assert.Equal(t, "r2", suggestions[1].RelationshipID)
}

func TestGenerateSuppressedDuringRestingSeason(t *testing.T) {
	rels := &fakeRelationshipStore{relationships: []*models.Relationship{relationship("r1", models.TierClose, 60)}}
	generator := newTestGenerator(rels, &fakeEventStore{}, &fakeScoreSource{}, &fakeSeasonSource{season: models.SeasonResting}, nil, tuning.Default())

	suggestions, err := generator.Generate(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Empty(t, suggestions)
	assert.Zero(t, rels.calls, "a resting season skips relationship evaluation entirely")
}
