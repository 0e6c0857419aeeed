// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess   = "success"
	OutcomeRequest   = "request_failure"
	OutcomeTransport = "transport_failure"
	OutcomeDiscarded = "discarded"
)

var (
	PredictionsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_predictions_total",
			Help: "Total number of prediction requests by outcome",
		},
		[]string{"outcome"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dashboard_prediction_duration_seconds",
			Help:    "Round-trip duration of prediction requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	PredictionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_predictions_in_flight",
			Help: "Number of prediction requests awaiting the backend",
		},
	)

	FieldChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_field_changes_total",
			Help: "Total number of form field edits by field and result",
		},
		[]string{"field", "result"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashboard_sessions_active",
			Help: "Number of form controllers held in memory",
		},
	)
)
