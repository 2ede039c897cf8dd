package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
)

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeRelationshipRepo struct {
	items map[string]*models.Relationship
}

func (f *fakeRelationshipRepo) Create(_ context.Context, relationship *models.Relationship) (*models.Relationship, error) {
	relationship.ID = "rel-new"
	relationship.CreatedAt = time.Now().UTC()
	relationship.UpdatedAt = relationship.CreatedAt
	return relationship, nil
}

func (f *fakeRelationshipRepo) Get(_ context.Context, _, id string) (*models.Relationship, error) {
	if r, ok := f.items[id]; ok {
		return r, nil
	}
	return nil, fernerrors.NewNotFoundError("relationship", id)
}

func (f *fakeRelationshipRepo) List(_ context.Context, _ string) ([]*models.Relationship, error) {
	out := make([]*models.Relationship, 0, len(f.items))
	for _, r := range f.items {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRelationshipRepo) Update(_ context.Context, _, id string, req *models.UpdateRelationshipRequest) (*models.Relationship, error) {
	r, ok := f.items[id]
	if !ok {
		return nil, fernerrors.NewNotFoundError("relationship", id)
	}
	if req.Tier != nil {
		r.Tier = *req.Tier
	}
	if req.Archetype != nil {
		r.Archetype = *req.Archetype
	}
	if req.Name != nil {
		r.Name = *req.Name
	}
	return r, nil
}

type fakeEventRepo struct {
	items   map[string]*models.InteractionEvent
	deleted []string
}

func (f *fakeEventRepo) Create(_ context.Context, event *models.InteractionEvent) (*models.InteractionEvent, error) {
	if event.ID == "" {
		event.ID = "event-new"
	}
	if f.items == nil {
		f.items = map[string]*models.InteractionEvent{}
	}
	f.items[event.ID] = event
	return event, nil
}

func (f *fakeEventRepo) Get(_ context.Context, _, id string) (*models.InteractionEvent, error) {
	if e, ok := f.items[id]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, fernerrors.NewNotFoundError("event", id)
}

func (f *fakeEventRepo) List(_ context.Context, _, _ string, _ models.EventStatus, _ int) ([]*models.InteractionEvent, error) {
	out := make([]*models.InteractionEvent, 0, len(f.items))
	for _, e := range f.items {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEventRepo) UpdateStatus(_ context.Context, _, id string, status models.EventStatus) error {
	e, ok := f.items[id]
	if !ok {
		return fernerrors.NewNotFoundError("event", id)
	}
	e.Status = status
	return nil
}

func (f *fakeEventRepo) AttachReflection(_ context.Context, _, id, reflection string) error {
	e, ok := f.items[id]
	if !ok {
		return fernerrors.NewNotFoundError("event", id)
	}
	e.Reflection = &reflection
	return nil
}

func (f *fakeEventRepo) Amend(_ context.Context, _, id string, req *models.AmendEventRequest) (*models.InteractionEvent, error) {
	e, ok := f.items[id]
	if !ok {
		return nil, fernerrors.NewNotFoundError("event", id)
	}
	e.RelationshipIDs = database.NewJSONB(req.RelationshipIDs)
	e.Category = req.Category
	e.OccurredAt = req.OccurredAt
	e.Duration = req.Duration
	e.Vibe = req.Vibe
	copied := *e
	return &copied, nil
}

func (f *fakeEventRepo) Delete(_ context.Context, _, id string) error {
	if _, ok := f.items[id]; !ok {
		return fernerrors.NewNotFoundError("event", id)
	}
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeEventScores struct {
	applied    []string
	recomputed []string
}

func (f *fakeEventScores) ApplyEvent(_ context.Context, _ string, event *models.InteractionEvent) error {
	f.applied = append(f.applied, event.ID)
	return nil
}

func (f *fakeEventScores) RecomputeScore(_ context.Context, _, relationshipID string) (*models.ScoreRecord, error) {
	f.recomputed = append(f.recomputed, relationshipID)
	return &models.ScoreRecord{RelationshipID: relationshipID}, nil
}

type testServer struct {
	t *testing.T
	e *echo.Echo
}

func newTestServer(t *testing.T, register func(g *echo.Group)) *testServer {
	e := echo.New()
	e.Use(middleware.Context())
	e.HTTPErrorHandler = middleware.Error(noopLogger())
	register(e.Group("/api/v1"))
	return &testServer{t: t, e: e}
}

func (s *testServer) request(method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderTenantID, "tenant-1")

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func TestCreateRelationship(t *testing.T) {
	repo := &fakeRelationshipRepo{items: map[string]*models.Relationship{}}
	scores := &fakeEventScores{}
	server := newTestServer(t, func(g *echo.Group) {
		NewRelationshipHandler(repo, scores, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodPost, "/api/v1/relationships", map[string]any{
		"name":      "Sam",
		"tier":      "close",
		"archetype": "sage",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Relationship
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "rel-new", created.ID)
	assert.Equal(t, "tenant-1", created.TenantID)
	assert.Equal(t, models.TierClose, created.Tier)
}

func TestCreateRelationshipRejectsUnknownTier(t *testing.T) {
	server := newTestServer(t, func(g *echo.Group) {
		NewRelationshipHandler(&fakeRelationshipRepo{}, &fakeEventScores{}, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodPost, "/api/v1/relationships", map[string]any{
		"name":      "Sam",
		"tier":      "bestie",
		"archetype": "sage",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMissingTenantHeaderIsUnauthorized(t *testing.T) {
	server := newTestServer(t, func(g *echo.Group) {
		NewRelationshipHandler(&fakeRelationshipRepo{}, &fakeEventScores{}, noopLogger()).RegisterRoutes(g)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/relationships", nil)
	rec := httptest.NewRecorder()
	server.e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateRelationshipTierRecomputes(t *testing.T) {
	repo := &fakeRelationshipRepo{items: map[string]*models.Relationship{
		"rel-1": {ID: "rel-1", TenantID: "tenant-1", Name: "Sam", Tier: models.TierCommunity, Archetype: models.ArchetypeSage},
	}}
	scores := &fakeEventScores{}
	server := newTestServer(t, func(g *echo.Group) {
		NewRelationshipHandler(repo, scores, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodPut, "/api/v1/relationships/rel-1", map[string]any{"tier": "inner"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"rel-1"}, scores.recomputed, "tier change must force a recompute")
}

func TestUpdateRelationshipNameOnlySkipsRecompute(t *testing.T) {
	repo := &fakeRelationshipRepo{items: map[string]*models.Relationship{
		"rel-1": {ID: "rel-1", TenantID: "tenant-1", Name: "Sam", Tier: models.TierClose, Archetype: models.ArchetypeSage},
	}}
	scores := &fakeEventScores{}
	server := newTestServer(t, func(g *echo.Group) {
		NewRelationshipHandler(repo, scores, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodPut, "/api/v1/relationships/rel-1", map[string]any{"name": "Sammy"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, scores.recomputed)
}

func TestCreateCompletedEventAppliesScore(t *testing.T) {
	repo := &fakeEventRepo{}
	scores := &fakeEventScores{}
	server := newTestServer(t, func(g *echo.Group) {
		NewEventHandler(repo, scores, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodPost, "/api/v1/events", map[string]any{
		"relationship_ids": []string{"rel-1", "rel-1", "rel-2"},
		"category":         "shared_meal",
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.InteractionEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.EventStatusCompleted, created.Status, "status defaults to completed")
	assert.Equal(t, []string{"rel-1", "rel-2"}, created.RelationshipIDs.GetValue(), "references are deduped")
	assert.Equal(t, []string{"event-new"}, scores.applied)
}

func TestCreatePlannedEventSkipsScore(t *testing.T) {
	repo := &fakeEventRepo{}
	scores := &fakeEventScores{}
	server := newTestServer(t, func(g *echo.Group) {
		NewEventHandler(repo, scores, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodPost, "/api/v1/events", map[string]any{
		"relationship_ids": []string{"rel-1"},
		"category":         "hangout",
		"status":           "planned",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, scores.applied)
}

func TestCompleteEventTriggersScore(t *testing.T) {
	repo := &fakeEventRepo{items: map[string]*models.InteractionEvent{
		"event-1": {
			ID:              "event-1",
			TenantID:        "tenant-1",
			RelationshipIDs: database.NewJSONB([]string{"rel-1"}),
			Category:        models.CategoryHangout,
			Status:          models.EventStatusPlanned,
			OccurredAt:      time.Now().UTC(),
		},
	}}
	scores := &fakeEventScores{}
	server := newTestServer(t, func(g *echo.Group) {
		NewEventHandler(repo, scores, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodPatch, "/api/v1/events/event-1/status", map[string]any{"status": "completed"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"event-1"}, scores.applied)
}

func TestStatusTransitionBackwardRejected(t *testing.T) {
	repo := &fakeEventRepo{items: map[string]*models.InteractionEvent{
		"event-1": {
			ID:              "event-1",
			TenantID:        "tenant-1",
			RelationshipIDs: database.NewJSONB([]string{"rel-1"}),
			Category:        models.CategoryHangout,
			Status:          models.EventStatusCompleted,
			OccurredAt:      time.Now().UTC(),
		},
	}}
	scores := &fakeEventScores{}
	server := newTestServer(t, func(g *echo.Group) {
		NewEventHandler(repo, scores, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodPatch, "/api/v1/events/event-1/status", map[string]any{"status": "planned"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, models.EventStatusCompleted, repo.items["event-1"].Status, "illegal transition must not mutate the row")
}

func TestReflectionRequiresCompletedEvent(t *testing.T) {
	repo := &fakeEventRepo{items: map[string]*models.InteractionEvent{
		"event-1": {
			ID:              "event-1",
			TenantID:        "tenant-1",
			RelationshipIDs: database.NewJSONB([]string{"rel-1"}),
			Category:        models.CategoryHangout,
			Status:          models.EventStatusPlanned,
			OccurredAt:      time.Now().UTC(),
		},
	}}
	server := newTestServer(t, func(g *echo.Group) {
		NewEventHandler(repo, &fakeEventScores{}, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodPatch, "/api/v1/events/event-1/reflection", map[string]any{"reflection": "it was lovely"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, repo.items["event-1"].Reflection)
}

func TestAmendRecomputesOldAndNewReferences(t *testing.T) {
	occurred := time.Now().UTC().AddDate(0, 0, -3)
	repo := &fakeEventRepo{items: map[string]*models.InteractionEvent{
		"event-1": {
			ID:              "event-1",
			TenantID:        "tenant-1",
			RelationshipIDs: database.NewJSONB([]string{"rel-1"}),
			Category:        models.CategorySharedMeal,
			Status:          models.EventStatusCompleted,
			OccurredAt:      occurred,
		},
	}}
	scores := &fakeEventScores{}
	server := newTestServer(t, func(g *echo.Group) {
		NewEventHandler(repo, scores, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodPut, "/api/v1/events/event-1", map[string]any{
		"relationship_ids": []string{"rel-2"},
		"category":         "hangout",
		"occurred_at":      occurred.Format(time.RFC3339),
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.ElementsMatch(t, []string{"rel-1", "rel-2"}, scores.recomputed, "both the dropped and the added reference must be recomputed")
}

func TestDeleteCompletedEventRecomputes(t *testing.T) {
	repo := &fakeEventRepo{items: map[string]*models.InteractionEvent{
		"event-1": {
			ID:              "event-1",
			TenantID:        "tenant-1",
			RelationshipIDs: database.NewJSONB([]string{"rel-1", "rel-2"}),
			Category:        models.CategoryCelebration,
			Status:          models.EventStatusCompleted,
			OccurredAt:      time.Now().UTC(),
		},
	}}
	scores := &fakeEventScores{}
	server := newTestServer(t, func(g *echo.Group) {
		NewEventHandler(repo, scores, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodDelete, "/api/v1/events/event-1", nil)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"event-1"}, repo.deleted)
	assert.ElementsMatch(t, []string{"rel-1", "rel-2"}, scores.recomputed)
}

func TestGetMissingEventMapsToNotFound(t *testing.T) {
	server := newTestServer(t, func(g *echo.Group) {
		NewEventHandler(&fakeEventRepo{}, &fakeEventScores{}, noopLogger()).RegisterRoutes(g)
	})

	rec := server.request(http.MethodGet, "/api/v1/events/missing", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
