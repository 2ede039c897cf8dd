// Package suggest turns cadence drift and activity patterns into
// ranked, reason-coded suggestions. Suggestions are ephemeral: every
// call regenerates the full list and nothing is persisted unless a
// suggestion is explicitly promoted to an insight.
package suggest

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tuning"
)

// RelationshipStore is the slice of the relationship repository the
// generator needs
type RelationshipStore interface {
	List(ctx context.Context, tenantID string) ([]*models.Relationship, error)
}

// EventStore serves completed interaction history
type EventStore interface {
	ListCompleted(ctx context.Context, tenantID, relationshipID string, since *time.Time) ([]*models.InteractionEvent, error)
	LatestCompletedAt(ctx context.Context, tenantID, relationshipID string) (*time.Time, error)
}

// ScoreSource yields the current decayed score for a relationship
type ScoreSource interface {
	CurrentScore(ctx context.Context, tenantID, relationshipID string) (*models.ScoreRecord, float64, error)
}

// SeasonSource yields the tenant's season; a resting season suppresses
// the whole pass
type SeasonSource interface {
	Evaluate(ctx context.Context, tenantID string) (*models.SeasonState, error)
}

// Cache remembers when a relationship was last suggested so ranking can
// rotate instead of nagging about the same people every pass
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Config contains configuration for the suggestion generator
type Config struct {
	SuggestedMarkTTL time.Duration // How long a last-suggested marker survives
}

// DefaultConfig returns default generator configuration
func DefaultConfig() Config {
	return Config{
		SuggestedMarkTTL: 30 * 24 * time.Hour,
	}
}

// Generator produces at most one suggestion per relationship per pass,
// picking the most urgent applicable reason.
type Generator struct {
	logger        ectologger.Logger
	relationships RelationshipStore
	events        EventStore
	scores        ScoreSource
	seasons       SeasonSource
	cache         Cache
	tuning        tuning.Tuning
	config        Config
}

// NewGenerator creates a new suggestion generator. cache may be nil, in
// which case every relationship ranks as never suggested.
func NewGenerator(
	logger ectologger.Logger,
	relationships RelationshipStore,
	events EventStore,
	scores ScoreSource,
	seasons SeasonSource,
	cache Cache,
	t tuning.Tuning,
	config Config,
) *Generator {
	return &Generator{
		logger:        logger,
		relationships: relationships,
		events:        events,
		scores:        scores,
		seasons:       seasons,
		cache:         cache,
		tuning:        t,
		config:        config,
	}
}

type candidate struct {
	suggestion      models.Suggestion
	lastSuggestedAt time.Time
}

// Generate evaluates every relationship and returns the ranked
// suggestion list: drift severity descending, then tier tightness
// descending, then least recently suggested first. A resting season
// returns an empty list.
func (g *Generator) Generate(ctx context.Context, tenantID string) ([]models.Suggestion, error) {
	ctx, span := tracing.StartSpan(ctx, "suggest.Generator.Generate")
	defer span.End()

	state, err := g.seasons.Evaluate(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if state.Effective() == models.SeasonResting {
		g.logger.WithContext(ctx).WithFields(map[string]any{
			"tenant_id": tenantID,
		}).Debug("Suggestions suppressed for resting season")
		return []models.Suggestion{}, nil
	}

	relationships, err := g.relationships.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	candidates := make([]candidate, 0, len(relationships))
	for _, relationship := range relationships {
		suggestion, err := g.evaluate(ctx, tenantID, relationship, now)
		if err != nil {
			return nil, err
		}
		if suggestion == nil {
			continue
		}
		candidates = append(candidates, candidate{
			suggestion:      *suggestion,
			lastSuggestedAt: g.lastSuggestedAt(ctx, tenantID, relationship.ID),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.suggestion.DriftSeverity != b.suggestion.DriftSeverity {
			return a.suggestion.DriftSeverity > b.suggestion.DriftSeverity
		}
		if a.suggestion.Tier.Tightness() != b.suggestion.Tier.Tightness() {
			return a.suggestion.Tier.Tightness() > b.suggestion.Tier.Tightness()
		}
		if !a.lastSuggestedAt.Equal(b.lastSuggestedAt) {
			return a.lastSuggestedAt.Before(b.lastSuggestedAt)
		}
		return a.suggestion.RelationshipID < b.suggestion.RelationshipID
	})

	if len(candidates) > g.tuning.MaxSuggestions {
		candidates = candidates[:g.tuning.MaxSuggestions]
	}

	suggestions := make([]models.Suggestion, 0, len(candidates))
	for _, c := range candidates {
		suggestions = append(suggestions, c.suggestion)
		g.markSuggested(ctx, tenantID, c.suggestion.RelationshipID, now)
		metrics.SuggestionsGeneratedTotal.WithLabelValues(tenantID, string(c.suggestion.Reason)).Inc()
	}

	g.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"count":     len(suggestions),
	}).Info("Generated suggestions")

	return suggestions, nil
}

// evaluate returns the most urgent applicable suggestion for one
// relationship, or nil when nothing fires. Precedence: high_drift,
// drift, tier_mismatch, deepen, momentum.
func (g *Generator) evaluate(ctx context.Context, tenantID string, relationship *models.Relationship, now time.Time) (*models.Suggestion, error) {
	last, err := g.events.LatestCompletedAt(ctx, tenantID, relationship.ID)
	if err != nil {
		return nil, err
	}

	// The cadence clock starts when the relationship was added, so a
	// never-contacted relationship still drifts.
	anchor := relationship.CreatedAt
	if last != nil {
		anchor = *last
	}

	expected := g.tuning.ExpectedInterval(relationship.Tier)
	actualDays := now.Sub(anchor).Hours() / 24
	severity := actualDays / float64(expected)

	suggestion := models.Suggestion{
		RelationshipID:   relationship.ID,
		RelationshipName: relationship.Name,
		Tier:             relationship.Tier,
		DriftSeverity:    severity,
		ExpectedDays:     expected,
		ActualDays:       int(actualDays),
		LastInteraction:  last,
	}

	switch {
	case actualDays > float64(expected)*g.tuning.HighDriftFactor:
		suggestion.Reason = models.ReasonHighDrift
		return &suggestion, nil
	case actualDays > float64(expected)*g.tuning.DriftFactor:
		suggestion.Reason = models.ReasonDrift
		return &suggestion, nil
	}

	since := now.AddDate(0, 0, -g.tuning.MomentumWindowDays)
	window, err := g.events.ListCompleted(ctx, tenantID, relationship.ID, &since)
	if err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return nil, nil
	}

	if g.tierMismatch(relationship.Tier, len(window)) {
		suggestion.Reason = models.ReasonTierMismatch
		return &suggestion, nil
	}

	deepen, err := g.deepen(ctx, tenantID, relationship.ID, window)
	if err != nil {
		return nil, err
	}
	if deepen {
		suggestion.Reason = models.ReasonDeepen
		return &suggestion, nil
	}

	if len(window) >= g.tuning.MomentumMinEvents {
		suggestion.Reason = models.ReasonMomentum
		return &suggestion, nil
	}

	return nil, nil
}

// tierMismatch reports whether the observed cadence inside the trailing
// window matches a strictly tighter tier than the assigned one.
func (g *Generator) tierMismatch(assigned models.Tier, windowCount int) bool {
	implied := float64(g.tuning.MomentumWindowDays) / float64(windowCount)
	for _, tier := range []models.Tier{models.TierInner, models.TierClose} {
		if tier.Tightness() <= assigned.Tightness() {
			continue
		}
		if implied <= float64(g.tuning.ExpectedInterval(tier)) {
			return true
		}
	}
	return false
}

// deepen reports whether a high score is carried almost entirely by
// categories other than deep conversation.
func (g *Generator) deepen(ctx context.Context, tenantID, relationshipID string, window []*models.InteractionEvent) (bool, error) {
	shallow := 0
	for _, event := range window {
		if event.Category != models.CategoryDeepConversation {
			shallow++
		}
	}
	share := float64(shallow) / float64(len(window))
	if share < g.tuning.DeepenShallowShare {
		return false, nil
	}

	_, score, err := g.scores.CurrentScore(ctx, tenantID, relationshipID)
	if err != nil {
		return false, err
	}
	return score >= g.tuning.DeepenMinScore, nil
}

func (g *Generator) lastSuggestedAt(ctx context.Context, tenantID, relationshipID string) time.Time {
	if g.cache == nil {
		return time.Time{}
	}
	value, err := g.cache.Get(ctx, suggestedKey(tenantID, relationshipID))
	if err != nil || value == "" {
		return time.Time{}
	}
	at, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return at
}

func (g *Generator) markSuggested(ctx context.Context, tenantID, relationshipID string, now time.Time) {
	if g.cache == nil {
		return
	}
	key := suggestedKey(tenantID, relationshipID)
	if err := g.cache.Set(ctx, key, now.Format(time.RFC3339Nano), g.config.SuggestedMarkTTL); err != nil {
		g.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"key": key,
		}).Debug("Failed to mark relationship as suggested")
	}
}

func suggestedKey(tenantID, relationshipID string) string {
	return "fern:last-suggested:" + tenantID + ":" + relationshipID
}
