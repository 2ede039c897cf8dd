package scoring

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tuning"
)

// RelationshipStore is the slice of the relationship repository the engine needs
type RelationshipStore interface {
	Get(ctx context.Context, tenantID, id string) (*models.Relationship, error)
	List(ctx context.Context, tenantID string) ([]*models.Relationship, error)
}

// EventStore lists completed interaction history in stable chronological order
type EventStore interface {
	ListCompleted(ctx context.Context, tenantID, relationshipID string, since *time.Time) ([]*models.InteractionEvent, error)
	LatestCompletedAt(ctx context.Context, tenantID, relationshipID string) (*time.Time, error)
}

// ScoreStore persists score checkpoints. Get returns nil without error when
// no record exists; absence means "not yet computed".
type ScoreStore interface {
	Get(ctx context.Context, tenantID, relationshipID string) (*models.ScoreRecord, error)
	Upsert(ctx context.Context, record *models.ScoreRecord) error
	ListByTenant(ctx context.Context, tenantID string) ([]*models.ScoreRecord, error)
}

// Cache is a best-effort cache for the network-health aggregate
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Config contains configuration for the score engine
type Config struct {
	HealthCacheTTL time.Duration // TTL for the cached network-health aggregate
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		HealthCacheTTL: time.Minute,
	}
}

// Engine is the score orchestrator. It folds newly completed events into
// cached score checkpoints, serves lazily decayed reads, and recomputes
// from raw history whenever the checkpoint cannot be trusted. The cached
// record always equals a full recomputation at its own timestamp.
type Engine struct {
	logger            ectologger.Logger
	relationshipStore RelationshipStore
	eventStore        EventStore
	scoreStore        ScoreStore
	scorer            *Scorer
	decay             *Decay
	tuning            tuning.Tuning
	cache             Cache
	config            Config
}

// NewEngine creates a new score engine. cache may be nil.
func NewEngine(
	logger ectologger.Logger,
	relationshipStore RelationshipStore,
	eventStore EventStore,
	scoreStore ScoreStore,
	t tuning.Tuning,
	cache Cache,
	config Config,
) *Engine {
	return &Engine{
		logger:            logger,
		relationshipStore: relationshipStore,
		eventStore:        eventStore,
		scoreStore:        scoreStore,
		scorer:            NewScorer(t),
		decay:             NewDecay(t),
		tuning:            t,
		cache:             cache,
		config:            config,
	}
}

// ApplyEvent folds a newly completed event into the cached score of every
// relationship it references. Events arriving out of order fall back to a
// full recomputation because decay cannot be rewound from a checkpoint.
func (e *Engine) ApplyEvent(ctx context.Context, tenantID string, event *models.InteractionEvent) error {
	ctx, span := tracing.StartSpan(ctx, "scoring.Engine.ApplyEvent")
	defer span.End()

	if event.Status != models.EventStatusCompleted {
		return nil
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"event_id":  event.ID,
		"category":  string(event.Category),
	})

	for _, relationshipID := range event.RelationshipIDs.GetValue() {
		relationship, err := e.relationshipStore.Get(ctx, tenantID, relationshipID)
		if err != nil {
			return err
		}

		record, err := e.scoreStore.Get(ctx, tenantID, relationshipID)
		if err != nil {
			return err
		}

		if record != nil && !event.OccurredAt.After(record.LastEventAt) {
			// Backfilled or redelivered event: the checkpoint already
			// decayed past it. Recomputing from history dedupes by row
			// identity, so refolding the same delivery is harmless.
			log.WithFields(map[string]any{"relationship_id": relationshipID}).
				Debug("Event does not postdate score checkpoint, recomputing from history")
			if _, err := e.recompute(ctx, tenantID, relationship, "backfill"); err != nil {
				return err
			}
			continue
		}

		score := 0.0
		if record != nil {
			elapsed := event.OccurredAt.Sub(record.LastEventAt).Hours() / 24
			score = e.decay.Apply(record.Score, elapsed, relationship.Tier)
		}

		score += e.scorer.Score(event, relationship.Archetype)
		if score > e.tuning.ScoreCap {
			score = e.tuning.ScoreCap
		}

		updated := &models.ScoreRecord{
			RelationshipID: relationshipID,
			TenantID:       tenantID,
			Score:          score,
			LastEventAt:    event.OccurredAt,
			ComputedAt:     time.Now().UTC(),
		}
		if err := e.scoreStore.Upsert(ctx, updated); err != nil {
			return err
		}

		metrics.EventsScoredTotal.WithLabelValues(tenantID, string(event.Category)).Inc()
	}

	e.dropHealthCache(ctx, tenantID)

	log.Debug("Applied event to relationship scores")
	return nil
}

// CurrentScore returns the cached checkpoint plus the lazily decayed
// current value. A missing checkpoint triggers a full recomputation rather
// than an error; a checkpoint newer than the latest completed event means
// the write path was bypassed, and recovery is likewise recomputation.
func (e *Engine) CurrentScore(ctx context.Context, tenantID, relationshipID string) (*models.ScoreRecord, float64, error) {
	ctx, span := tracing.StartSpan(ctx, "scoring.Engine.CurrentScore")
	defer span.End()

	relationship, err := e.relationshipStore.Get(ctx, tenantID, relationshipID)
	if err != nil {
		return nil, 0, err
	}

	record, err := e.scoreStore.Get(ctx, tenantID, relationshipID)
	if err != nil {
		return nil, 0, err
	}

	if record == nil {
		record, err = e.recompute(ctx, tenantID, relationship, "missing_state")
		if err != nil {
			return nil, 0, err
		}
	} else {
		latestAt, err := e.eventStore.LatestCompletedAt(ctx, tenantID, relationshipID)
		if err != nil {
			return nil, 0, err
		}
		if violation := checkConsistency(record, latestAt); violation != nil {
			e.logger.WithContext(ctx).WithError(violation).WithFields(map[string]any{
				"tenant_id":       tenantID,
				"relationship_id": relationshipID,
			}).Warn("Score checkpoint is inconsistent with event history, recomputing")
			record, err = e.recompute(ctx, tenantID, relationship, "inconsistent_state")
			if err != nil {
				return nil, 0, err
			}
		} else if latestAt != nil && latestAt.After(record.LastEventAt) {
			// A completed event exists that the checkpoint never folded in.
			e.logger.WithContext(ctx).WithFields(map[string]any{
				"tenant_id":       tenantID,
				"relationship_id": relationshipID,
			}).Debug("Score checkpoint is behind event history, recomputing")
			record, err = e.recompute(ctx, tenantID, relationship, "stale_checkpoint")
			if err != nil {
				return nil, 0, err
			}
		}
	}

	return record, e.currentValue(record, relationship.Tier, time.Now().UTC()), nil
}

// RecomputeScore rebuilds the checkpoint for one relationship from its full
// completed-event history.
func (e *Engine) RecomputeScore(ctx context.Context, tenantID, relationshipID string) (*models.ScoreRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "scoring.Engine.RecomputeScore")
	defer span.End()

	relationship, err := e.relationshipStore.Get(ctx, tenantID, relationshipID)
	if err != nil {
		return nil, err
	}

	return e.recompute(ctx, tenantID, relationship, "requested")
}

func (e *Engine) recompute(ctx context.Context, tenantID string, relationship *models.Relationship, trigger string) (*models.ScoreRecord, error) {
	start := time.Now()

	events, err := e.eventStore.ListCompleted(ctx, tenantID, relationship.ID, nil)
	if err != nil {
		return nil, err
	}

	score := 0.0
	lastEventAt := time.Time{}
	for _, event := range events {
		if !lastEventAt.IsZero() {
			elapsed := event.OccurredAt.Sub(lastEventAt).Hours() / 24
			score = e.decay.Apply(score, elapsed, relationship.Tier)
		}
		score += e.scorer.Score(event, relationship.Archetype)
		if score > e.tuning.ScoreCap {
			score = e.tuning.ScoreCap
		}
		lastEventAt = event.OccurredAt
	}

	record := &models.ScoreRecord{
		RelationshipID: relationship.ID,
		TenantID:       tenantID,
		Score:          score,
		LastEventAt:    lastEventAt,
		ComputedAt:     time.Now().UTC(),
	}
	if err := e.scoreStore.Upsert(ctx, record); err != nil {
		return nil, err
	}

	e.dropHealthCache(ctx, tenantID)

	metrics.ScoreRecomputesTotal.WithLabelValues(tenantID, trigger).Inc()
	metrics.RecomputeDuration.WithLabelValues(tenantID).Observe(time.Since(start).Seconds())

	return record, nil
}

// NetworkHealth returns the tier-weighted mean of all current relationship
// scores. The aggregate is cached briefly because it touches every score
// row; any score write drops the cache.
func (e *Engine) NetworkHealth(ctx context.Context, tenantID string) (*models.NetworkHealth, error) {
	ctx, span := tracing.StartSpan(ctx, "scoring.Engine.NetworkHealth")
	defer span.End()

	if cached := e.readHealthCache(ctx, tenantID); cached != nil {
		return cached, nil
	}

	relationships, err := e.relationshipStore.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	records, err := e.scoreStore.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	recordsByID := make(map[string]*models.ScoreRecord, len(records))
	for _, record := range records {
		recordsByID[record.RelationshipID] = record
	}

	now := time.Now().UTC()
	weightedSum := 0.0
	weightTotal := 0.0
	tierSums := map[models.Tier]float64{}
	tierCounts := map[models.Tier]int{}

	for _, relationship := range relationships {
		current := e.tuning.ScoreFloor
		if record, ok := recordsByID[relationship.ID]; ok {
			current = e.currentValue(record, relationship.Tier, now)
		}

		weight := e.tuning.TierWeight(relationship.Tier)
		weightedSum += current * weight
		weightTotal += weight
		tierSums[relationship.Tier] += current
		tierCounts[relationship.Tier]++
	}

	health := &models.NetworkHealth{
		ByTier:     map[models.Tier]float64{},
		Count:      len(relationships),
		ComputedAt: now,
	}
	if weightTotal > 0 {
		health.Overall = weightedSum / weightTotal
	}
	for tier, sum := range tierSums {
		health.ByTier[tier] = sum / float64(tierCounts[tier])
	}

	e.writeHealthCache(ctx, tenantID, health)

	return health, nil
}

// currentValue decays a checkpoint to its value at now
func (e *Engine) currentValue(record *models.ScoreRecord, tier models.Tier, now time.Time) float64 {
	if record.LastEventAt.IsZero() {
		return e.tuning.ScoreFloor
	}
	elapsed := now.Sub(record.LastEventAt).Hours() / 24
	return e.decay.Apply(record.Score, elapsed, tier)
}

// checkConsistency returns the violation when a checkpoint claims to be
// newer than the history it summarizes.
func checkConsistency(record *models.ScoreRecord, latestAt *time.Time) *fernerrors.InconsistentStateError {
	if record.LastEventAt.IsZero() {
		return nil
	}
	if latestAt == nil {
		return fernerrors.NewInconsistentStateError(record.RelationshipID, record.LastEventAt, time.Time{})
	}
	if record.LastEventAt.After(*latestAt) {
		return fernerrors.NewInconsistentStateError(record.RelationshipID, record.LastEventAt, *latestAt)
	}
	return nil
}

func healthCacheKey(tenantID string) string {
	return "fern:network-health:" + tenantID
}

func (e *Engine) readHealthCache(ctx context.Context, tenantID string) *models.NetworkHealth {
	if e.cache == nil {
		return nil
	}
	raw, err := e.cache.Get(ctx, healthCacheKey(tenantID))
	if err != nil || raw == "" {
		return nil
	}
	var health models.NetworkHealth
	if err := json.Unmarshal([]byte(raw), &health); err != nil {
		return nil
	}
	return &health
}

func (e *Engine) writeHealthCache(ctx context.Context, tenantID string, health *models.NetworkHealth) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(health)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, healthCacheKey(tenantID), string(raw), e.config.HealthCacheTTL); err != nil {
		e.logger.WithContext(ctx).WithError(err).Debug("Failed to cache network health")
	}
}

func (e *Engine) dropHealthCache(ctx context.Context, tenantID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Del(ctx, healthCacheKey(tenantID)); err != nil {
		e.logger.WithContext(ctx).WithError(err).Debug("Failed to drop network health cache")
	}
}
