// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsScoredTotal tracks completed interaction events folded into scores
	EventsScoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "scoring",
			Name:      "events_scored_total",
			Help:      "Total number of completed interaction events applied to relationship scores",
		},
		[]string{"tenant_id", "category"},
	)

	// ScoreRecomputesTotal tracks full recomputations from event history
	ScoreRecomputesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "scoring",
			Name:      "recomputes_total",
			Help:      "Total number of full score recomputations by trigger",
		},
		[]string{"tenant_id", "trigger"},
	)

	// RecomputeDuration tracks full recomputation duration in seconds
	RecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "scoring",
			Name:      "recompute_duration_seconds",
			Help:      "Duration of full score recomputations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		},
		[]string{"tenant_id"},
	)

	// SuggestionsGeneratedTotal tracks suggestions emitted by reason code
	SuggestionsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "suggest",
			Name:      "generated_total",
			Help:      "Total number of suggestions generated by reason",
		},
		[]string{"tenant_id", "reason"},
	)

	// InsightsPromotedTotal tracks suggestions promoted to durable insights
	InsightsPromotedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "insight",
			Name:      "promoted_total",
			Help:      "Total number of suggestions promoted to insights by rule",
		},
		[]string{"tenant_id", "rule_id"},
	)

	// InsightsRetiredTotal tracks insights moved to a terminal status
	InsightsRetiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "insight",
			Name:      "retired_total",
			Help:      "Total number of insights invalidated or expired",
		},
		[]string{"tenant_id", "status"},
	)

	// InsightsOpen tracks non-terminal insights awaiting reconciliation
	InsightsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "insight",
			Name:      "open",
			Help:      "Number of non-terminal insights at the last sweep",
		},
	)

	// SweepDuration tracks reconciliation sweep duration in seconds
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "insight",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of insight reconciliation sweeps in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// SweepsTotal tracks reconciliation sweeps by outcome
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "insight",
			Name:      "sweeps_total",
			Help:      "Total number of reconciliation sweeps by outcome",
		},
		[]string{"outcome"},
	)

	// ConsumerMessagesTotal tracks kafka messages consumed by outcome
	ConsumerMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "consumer",
			Name:      "messages_total",
			Help:      "Total number of interaction messages consumed by outcome",
		},
		[]string{"outcome"},
	)
)
