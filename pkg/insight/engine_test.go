package insight

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tuning"
)

type fakeStore struct {
	insights      map[string]*models.Insight
	statusUpdates int
}

func newFakeStore(insights ...*models.Insight) *fakeStore {
	store := &fakeStore{insights: map[string]*models.Insight{}}
	for _, insight := range insights {
		cp := *insight
		store.insights[insight.ID] = &cp
	}
	return store
}

func (f *fakeStore) Create(_ context.Context, insight *models.Insight) error {
	cp := *insight
	f.insights[insight.ID] = &cp
	return nil
}

func (f *fakeStore) Get(_ context.Context, _ string, id string) (*models.Insight, error) {
	insight, ok := f.insights[id]
	if !ok {
		return nil, fernerrors.NewNotFoundError("insight", id)
	}
	cp := *insight
	return &cp, nil
}

func (f *fakeStore) ListNonTerminal(_ context.Context, _ string) ([]*models.Insight, error) {
	out := make([]*models.Insight, 0)
	for _, insight := range f.insights {
		if !insight.Status.IsTerminal() {
			cp := *insight
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, _ string, id string, status models.InsightStatus) error {
	insight, ok := f.insights[id]
	if !ok {
		return fernerrors.NewNotFoundError("insight", id)
	}
	insight.Status = status
	insight.UpdatedAt = time.Now().UTC()
	f.statusUpdates++
	return nil
}

type fakeRelationships struct {
	ids map[string]bool
}

func (f *fakeRelationships) Get(_ context.Context, tenantID, id string) (*models.Relationship, error) {
	if !f.ids[id] {
		return nil, fernerrors.NewNotFoundError("relationship", id)
	}
	return &models.Relationship{ID: id, TenantID: tenantID, Tier: models.TierClose}, nil
}

type fakeChecker struct {
	contacted map[string]bool
	tiers     map[models.Tier]bool
}

func (f *fakeChecker) HasCompletedSince(_ context.Context, _, relationshipID string, _ time.Time) (bool, error) {
	return f.contacted[relationshipID], nil
}

func (f *fakeChecker) HasCompletedInTierSince(_ context.Context, _ string, tier models.Tier, _ time.Time) (bool, error) {
	return f.tiers[tier], nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestEngine(store *fakeStore, relationships *fakeRelationships, checker *fakeChecker) *Engine {
	if relationships == nil {
		relationships = &fakeRelationships{ids: map[string]bool{}}
	}
	if checker == nil {
		checker = &fakeChecker{}
	}
	return NewEngine(noopLogger(), store, relationships, checker, nil, tuning.Default())
}

func strPtr(s string) *string { return &s }

func tierPtr(t models.Tier) *models.Tier { return &t }

func driftInsight(id, relationshipID string, generatedDaysAgo, expiresInDays int) *models.Insight {
	now := time.Now().UTC()
	return &models.Insight{
		ID:             id,
		TenantID:       "tenant-1",
		RuleID:         models.RuleDrift,
		RelationshipID: strPtr(relationshipID),
		Status:         models.InsightStatusUnseen,
		GeneratedAt:    now.AddDate(0, 0, -generatedDaysAgo),
		ExpiresAt:      now.AddDate(0, 0, expiresInDays),
		UpdatedAt:      now.AddDate(0, 0, -generatedDaysAgo),
	}
}

func TestPromoteCreatesUnseenInsight(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store, &fakeRelationships{ids: map[string]bool{"r1": true}}, nil)

	insight, err := engine.Promote(context.Background(), "tenant-1", &models.PromoteSuggestionRequest{
		RuleID:         models.RuleDrift,
		RelationshipID: strPtr("r1"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.InsightStatusUnseen, insight.Status)
	assert.NotEmpty(t, insight.ID)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 7), insight.ExpiresAt, time.Minute)
	assert.Contains(t, store.insights, insight.ID)
}

func TestPromoteHonorsTTLOverride(t *testing.T) {
	ttl := 2
	engine := newTestEngine(newFakeStore(), &fakeRelationships{ids: map[string]bool{"r1": true}}, nil)

	insight, err := engine.Promote(context.Background(), "tenant-1", &models.PromoteSuggestionRequest{
		RuleID:         models.RuleDrift,
		RelationshipID: strPtr("r1"),
		TTLDays:        &ttl,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 2), insight.ExpiresAt, time.Minute)
}

func TestPromoteValidatesRuleTargets(t *testing.T) {
	engine := newTestEngine(newFakeStore(), &fakeRelationships{ids: map[string]bool{"r1": true}}, nil)

	_, err := engine.Promote(context.Background(), "tenant-1", &models.PromoteSuggestionRequest{
		RuleID: models.RuleHighDrift,
	})
	assert.True(t, fernerrors.IsValidationError(err), "relationship-scoped rules need a relationship")

	_, err = engine.Promote(context.Background(), "tenant-1", &models.PromoteSuggestionRequest{
		RuleID: models.RuleTierNeglect,
	})
	assert.True(t, fernerrors.IsValidationError(err), "tier-scoped rules need a tier")

	_, err = engine.Promote(context.Background(), "tenant-1", &models.PromoteSuggestionRequest{
		RuleID:         models.RuleDrift,
		RelationshipID: strPtr("missing"),
	})
	assert.True(t, fernerrors.IsNotFoundError(err))
}

func TestPromoteUnknownRuleUsesDefaultTTL(t *testing.T) {
	engine := newTestEngine(newFakeStore(), nil, nil)

	insight, err := engine.Promote(context.Background(), "tenant-1", &models.PromoteSuggestionRequest{
		RuleID: "custom_note",
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 7), insight.ExpiresAt, time.Minute)
}

func TestMarkSeenTransition(t *testing.T) {
	store := newFakeStore(driftInsight("i1", "r1", 1, 6))
	engine := newTestEngine(store, nil, nil)

	insight, err := engine.MarkSeen(context.Background(), "tenant-1", "i1")
	require.NoError(t, err)
	assert.Equal(t, models.InsightStatusSeen, insight.Status)
	assert.Equal(t, 1, store.statusUpdates)

	// Marking again is a no-op.
	_, err = engine.MarkSeen(context.Background(), "tenant-1", "i1")
	require.NoError(t, err)
	assert.Equal(t, 1, store.statusUpdates)
}

func TestMarkSeenRejectsTerminalInsight(t *testing.T) {
	retired := driftInsight("i1", "r1", 1, 6)
	retired.Status = models.InsightStatusInvalidated
	engine := newTestEngine(newFakeStore(retired), nil, nil)

	_, err := engine.MarkSeen(context.Background(), "tenant-1", "i1")
	assert.True(t, fernerrors.IsValidationError(err))
}

func TestReconcileInvalidatesOnLaterInteraction(t *testing.T) {
	store := newFakeStore(driftInsight("i1", "r1", 2, 5))
	checker := &fakeChecker{contacted: map[string]bool{"r1": true}}
	engine := newTestEngine(store, nil, checker)

	result, err := engine.Reconcile(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Invalidated)
	assert.Equal(t, models.InsightStatusInvalidated, store.insights["i1"].Status)
}

func TestReconcileValidityBeatsExpiry(t *testing.T) {
	// TTL already elapsed AND the condition broke: the validity check
	// runs first, so the insight retires as invalidated, not expired.
	store := newFakeStore(driftInsight("i1", "r1", 10, -3))
	checker := &fakeChecker{contacted: map[string]bool{"r1": true}}
	engine := newTestEngine(store, nil, checker)

	result, err := engine.Reconcile(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Invalidated)
	assert.Zero(t, result.Expired)
	assert.Equal(t, models.InsightStatusInvalidated, store.insights["i1"].Status)
}

func TestReconcileExpiresPastTTL(t *testing.T) {
	store := newFakeStore(driftInsight("i1", "r1", 10, -3))
	engine := newTestEngine(store, nil, &fakeChecker{})

	result, err := engine.Reconcile(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)
	assert.Equal(t, models.InsightStatusExpired, store.insights["i1"].Status)
}

func TestReconcileKeepsValidOpenInsights(t *testing.T) {
	store := newFakeStore(driftInsight("i1", "r1", 1, 6))
	engine := newTestEngine(store, nil, &fakeChecker{})

	result, err := engine.Reconcile(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Remaining)
	assert.Zero(t, store.statusUpdates)
	assert.Equal(t, models.InsightStatusUnseen, store.insights["i1"].Status)
}

func TestReconcileTierNeglect(t *testing.T) {
	now := time.Now().UTC()
	contacted := &models.Insight{
		ID:          "i1",
		TenantID:    "tenant-1",
		RuleID:      models.RuleTierNeglect,
		Tier:        tierPtr(models.TierClose),
		Status:      models.InsightStatusSeen,
		GeneratedAt: now.AddDate(0, 0, -2),
		ExpiresAt:   now.AddDate(0, 0, 5),
	}
	quiet := &models.Insight{
		ID:          "i2",
		TenantID:    "tenant-1",
		RuleID:      models.RuleTierNeglect,
		Tier:        tierPtr(models.TierInner),
		Status:      models.InsightStatusUnseen,
		GeneratedAt: now.AddDate(0, 0, -2),
		ExpiresAt:   now.AddDate(0, 0, 5),
	}
	store := newFakeStore(contacted, quiet)
	checker := &fakeChecker{tiers: map[models.Tier]bool{models.TierClose: true}}
	engine := newTestEngine(store, nil, checker)

	result, err := engine.Reconcile(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Invalidated)
	assert.Equal(t, 1, result.Remaining)
	assert.Equal(t, models.InsightStatusInvalidated, store.insights["i1"].Status)
	assert.Equal(t, models.InsightStatusUnseen, store.insights["i2"].Status)
}

func TestReconcileUnknownRuleWaitsForTTL(t *testing.T) {
	now := time.Now().UTC()
	insight := &models.Insight{
		ID:             "i1",
		TenantID:       "tenant-1",
		RuleID:         "custom_note",
		RelationshipID: strPtr("r1"),
		Status:         models.InsightStatusUnseen,
		GeneratedAt:    now.AddDate(0, 0, -2),
		ExpiresAt:      now.AddDate(0, 0, 5),
	}
	store := newFakeStore(insight)
	// Interactions exist, but an unknown rule never consults them.
	checker := &fakeChecker{contacted: map[string]bool{"r1": true}}
	engine := newTestEngine(store, nil, checker)

	result, err := engine.Reconcile(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Remaining)
	assert.Equal(t, models.InsightStatusUnseen, store.insights["i1"].Status)
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := newFakeStore(
		driftInsight("i1", "r1", 2, 5),   // invalidates
		driftInsight("i2", "r2", 10, -3), // expires
		driftInsight("i3", "r3", 1, 6),   // stays open
	)
	checker := &fakeChecker{contacted: map[string]bool{"r1": true}}
	engine := newTestEngine(store, nil, checker)

	first, err := engine.Reconcile(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Checked)
	assert.Equal(t, 1, first.Invalidated)
	assert.Equal(t, 1, first.Expired)
	updatesAfterFirst := store.statusUpdates

	second, err := engine.Reconcile(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.Equal(t, 1, second.Checked, "terminal insights leave the sweep set")
	assert.Zero(t, second.Invalidated)
	assert.Zero(t, second.Expired)
	assert.Equal(t, updatesAfterFirst, store.statusUpdates, "second run with no new events changes nothing")
}
