// Package metrics holds the Prometheus collectors for the recettes service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Signal outcomes
const (
	OutcomeApplied = "applied"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

var (
	// SignalsTotal counts preference signals by kind (view, reaction,
	// comment) and outcome.
	SignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recettes_signals_total",
			Help: "Preference signals by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// RecommendationsTotal counts recommendation computations.
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recettes_recommendations_total",
			Help: "Recommendation computations by outcome",
		},
		[]string{"outcome"},
	)

	// RecommendationDuration observes how long a full ranking pass takes.
	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recettes_recommendation_duration_seconds",
			Help:    "Time to load preferences and rank the recipe corpus",
			Buckets: prometheus.DefBuckets,
		},
	)

	// PreferenceStreams tracks open websocket preference streams.
	PreferenceStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recettes_preference_streams",
			Help: "Open preference websocket streams",
		},
	)
)
