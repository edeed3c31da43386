// Package metrics holds the domain Prometheus collectors. HTTP request
// metrics come from the fiberprometheus middleware; these cover the
// background functions and the upstream clients.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UsageIncrements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebase_usage_increments_total",
			Help: "Usage count increments by collection and outcome",
		},
		[]string{"collection", "outcome"},
	)

	TrendingRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebase_trending_runs_total",
			Help: "Trending calculations by outcome",
		},
		[]string{"outcome"},
	)

	TrendingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memebase_trending_duration_seconds",
			Help:    "Duration of trending calculations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		},
	)

	TrendingDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebase_trending_documents_total",
			Help: "Documents scored by the trending calculation",
		},
		[]string{"outcome"},
	)

	BatchDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memebase_batch_documents_total",
			Help: "Documents processed by batch creation",
		},
		[]string{"collection", "outcome"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memebase_upstream_breaker_state",
			Help: "Circuit breaker state per upstream API",
		},
		[]string{"service"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordUsageIncrement counts one usageCount increment
func RecordUsageIncrement(collection string, err error) {
	UsageIncrements.WithLabelValues(collection, outcome(err)).Inc()
}

// RecordTrendingRun records a finished trending calculation. processed
// counts the documents scored successfully.
func RecordTrendingRun(duration time.Duration, processed, failed int, err error) {
	TrendingRuns.WithLabelValues(outcome(err)).Inc()
	TrendingDuration.Observe(duration.Seconds())
	TrendingDocuments.WithLabelValues("success").Add(float64(processed))
	TrendingDocuments.WithLabelValues("failure").Add(float64(failed))
}

// RecordBatch counts the outcome of a batch creation
func RecordBatch(collection string, successful, failed int) {
	BatchDocuments.WithLabelValues(collection, "success").Add(float64(successful))
	BatchDocuments.WithLabelValues(collection, "failure").Add(float64(failed))
}

// SetBreakerState publishes a breaker state change
func SetBreakerState(service string, state int) {
	BreakerState.WithLabelValues(service).Set(float64(state))
}
