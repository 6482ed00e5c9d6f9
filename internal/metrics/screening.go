package metrics

import "github.com/prometheus/client_golang/prometheus"

// Screening pipeline metrics.
var (
	ScreeningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "screener",
			Name:      "screenings_total",
			Help:      "Total number of screening calls",
		},
		[]string{"outcome"}, // "ranked" / "empty" / "invalid" / "unavailable" / "error"
	)

	ScreeningDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "screener",
			Name:      "screening_duration_seconds",
			Help:      "End-to-end screening duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ScreeningPhaseSurvivors = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "screener",
			Name:      "screening_phase_survivors",
			Help:      "Candidates surviving each filtering phase",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"phase"},
	)

	ScreeningDegradationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "screener",
			Name:      "screening_degradations_total",
			Help:      "Phases skipped or degraded because a collaborator failed",
		},
		[]string{"phase", "reason"},
	)

	GeocodeLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "screener",
			Name:      "geocode_lookups_total",
			Help:      "Geocode cache lookups by result",
		},
		[]string{"result"}, // "hit" / "miss" / "unresolved" / "error"
	)

	BreakerStateChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "screener",
			Name:      "circuit_breaker_state_changes_total",
			Help:      "Circuit breaker transitions by breaker and target state",
		},
		[]string{"breaker", "to"},
	)
)

var screeningMetricsRegistered bool

// RegisterScreeningMetrics registers screening, geocoding and breaker metrics. Must be called once from main.
func RegisterScreeningMetrics() {
	if screeningMetricsRegistered {
		return
	}
	prometheus.MustRegister(ScreeningsTotal)
	prometheus.MustRegister(ScreeningDuration)
	prometheus.MustRegister(ScreeningPhaseSurvivors)
	prometheus.MustRegister(ScreeningDegradationsTotal)
	prometheus.MustRegister(GeocodeLookupsTotal)
	prometheus.MustRegister(BreakerStateChangesTotal)
	screeningMetricsRegistered = true
}
