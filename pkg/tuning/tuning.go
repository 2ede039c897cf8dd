// Package tuning holds every externally tunable number the engine uses.
// The algorithms read these tables through a Tuning value so nothing is
// hard-coded inside scoring, decay, streaks, seasons or suggestions.
package tuning

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Tuning is the full parameter set for the intelligence engine
type Tuning struct {
	// CategoryWeights is the base quality contribution per category
	CategoryWeights map[models.InteractionCategory]float64

	// DurationFactors scales the base weight by interaction length
	DurationFactors map[models.DurationBucket]float64

	// AffinityMatrix weights category x archetype. Asymmetric; values
	// typically 0.8-2.0. Missing entries fall back to 1.0.
	AffinityMatrix map[models.Archetype]map[models.InteractionCategory]float64

	// HalfLifeDays is the tier-specific decay half-life. Tighter tiers
	// decay faster.
	HalfLifeDays map[models.Tier]float64

	// ScoreFloor is the value decay approaches but never crosses
	ScoreFloor float64

	// ScoreCap clamps the score after an additive bump
	ScoreCap float64

	// TierWeights weights each tier in the network-health aggregate
	TierWeights map[models.Tier]float64

	// ExpectedIntervalDays is the expected contact cadence per tier
	ExpectedIntervalDays map[models.Tier]int

	// DriftFactor multiplies the expected interval before a drift
	// suggestion fires; HighDriftFactor does the same for high_drift
	DriftFactor     float64
	HighDriftFactor float64

	// MomentumWindowDays and MomentumMinEvents gate momentum suggestions:
	// at least that many completed interactions inside the window
	MomentumWindowDays int
	MomentumMinEvents  int

	// DeepenMinScore and DeepenShallowShare gate deepen suggestions: a
	// score at or above the minimum carried by at least that share of
	// shallow-category interactions in the trailing window
	DeepenMinScore     float64
	DeepenShallowShare float64

	// MaxSuggestions caps one generation pass
	MaxSuggestions int

	// Season thresholds band each classification input. Event counts at
	// or below the resting cut vote resting, at or above the blooming
	// cut vote blooming; network health bands the same way. A zero
	// streak votes resting, one at or past BloomingStreakDays votes
	// blooming.
	SeasonWindowDays      int
	RestingWeeklyEvents   int
	BloomingWeeklyEvents  int
	RestingNetworkHealth  float64
	BloomingNetworkHealth float64
	BloomingStreakDays    int
	OverrideReevalWindow  time.Duration

	// InsightTTLDays is the default insight lifetime per rule; rules not
	// listed use DefaultInsightTTLDays
	InsightTTLDays        map[string]int
	DefaultInsightTTLDays int
}

// Default returns the engine defaults. Hosts override individual tables
// through config rather than editing algorithm code.
func Default() Tuning {
	return Tuning{
		CategoryWeights: map[models.InteractionCategory]float64{
			models.CategoryTextCall:         1.0,
			models.CategorySharedMeal:       2.5,
			models.CategoryHangout:          2.0,
			models.CategoryDeepConversation: 4.0,
			models.CategoryCelebration:      3.0,
			models.CategoryActivity:         2.0,
		},
		DurationFactors: map[models.DurationBucket]float64{
			models.DurationQuick:    0.7,
			models.DurationStandard: 1.0,
			models.DurationExtended: 1.4,
		},
		AffinityMatrix: map[models.Archetype]map[models.InteractionCategory]float64{
			models.ArchetypeAnchor: {
				models.CategoryTextCall:   1.3,
				models.CategorySharedMeal: 1.2,
			},
			models.ArchetypeAdventurer: {
				models.CategoryActivity:  1.8,
				models.CategoryHangout:   1.4,
				models.CategoryTextCall:  0.8,
			},
			models.ArchetypeNurturer: {
				models.CategoryTextCall:         1.5,
				models.CategoryDeepConversation: 1.3,
			},
			models.ArchetypeConnector: {
				models.CategoryCelebration: 1.6,
				models.CategoryHangout:     1.5,
				models.CategorySharedMeal:  1.2,
			},
			models.ArchetypeSage: {
				models.CategoryDeepConversation: 2.0,
				models.CategoryTextCall:         0.9,
				models.CategoryCelebration:      0.8,
			},
		},
		HalfLifeDays: map[models.Tier]float64{
			models.TierInner:     21,
			models.TierClose:     45,
			models.TierCommunity: 90,
		},
		ScoreFloor: 0,
		ScoreCap:   100,
		TierWeights: map[models.Tier]float64{
			models.TierInner:     3.0,
			models.TierClose:     2.0,
			models.TierCommunity: 1.0,
		},
		ExpectedIntervalDays: map[models.Tier]int{
			models.TierInner:     3,
			models.TierClose:     7,
			models.TierCommunity: 30,
		},
		DriftFactor:        1.5,
		HighDriftFactor:    2.5,
		MomentumWindowDays: 14,
		MomentumMinEvents:  3,
		DeepenMinScore:     60,
		DeepenShallowShare: 0.8,
		MaxSuggestions:     10,

		SeasonWindowDays:      7,
		RestingWeeklyEvents:   2,
		BloomingWeeklyEvents:  8,
		RestingNetworkHealth:  20,
		BloomingNetworkHealth: 65,
		BloomingStreakDays:    7,
		OverrideReevalWindow:  14 * 24 * time.Hour,

		InsightTTLDays: map[string]int{
			models.RuleDrift:       7,
			models.RuleHighDrift:   7,
			models.RuleMomentum:    3,
			models.RuleDeepen:      14,
			models.RuleTierNeglect: 7,
		},
		DefaultInsightTTLDays: 7,
	}
}

// CategoryWeight returns the base weight for a category, zero when unknown
func (t Tuning) CategoryWeight(c models.InteractionCategory) float64 {
	return t.CategoryWeights[c]
}

// DurationFactor returns the multiplier for a duration bucket. A nil
// bucket means standard.
func (t Tuning) DurationFactor(d *models.DurationBucket) float64 {
	if d == nil {
		return t.DurationFactors[models.DurationStandard]
	}
	if f, ok := t.DurationFactors[*d]; ok {
		return f
	}
	return t.DurationFactors[models.DurationStandard]
}

// Affinity returns the archetype multiplier for a category, 1.0 when the
// matrix has no entry.
func (t Tuning) Affinity(a models.Archetype, c models.InteractionCategory) float64 {
	if row, ok := t.AffinityMatrix[a]; ok {
		if f, ok := row[c]; ok {
			return f
		}
	}
	return 1.0
}

// HalfLife returns the decay half-life in days for a tier. Unknown tiers
// use the loosest configured tier.
func (t Tuning) HalfLife(tier models.Tier) float64 {
	if hl, ok := t.HalfLifeDays[tier]; ok {
		return hl
	}
	return t.HalfLifeDays[models.TierCommunity]
}

// TierWeight returns the network-health weight for a tier
func (t Tuning) TierWeight(tier models.Tier) float64 {
	if w, ok := t.TierWeights[tier]; ok {
		return w
	}
	return 1.0
}

// ExpectedInterval returns the expected contact cadence for a tier
func (t Tuning) ExpectedInterval(tier models.Tier) int {
	if d, ok := t.ExpectedIntervalDays[tier]; ok {
		return d
	}
	return t.ExpectedIntervalDays[models.TierCommunity]
}

// InsightTTL returns the configured lifetime for a rule's insights
func (t Tuning) InsightTTL(ruleID string) time.Duration {
	days := t.DefaultInsightTTLDays
	if d, ok := t.InsightTTLDays[ruleID]; ok {
		days = d
	}
	return time.Duration(days) * 24 * time.Hour
}
