// Package metrics exposes Prometheus collectors for booth sessions and
// provider calls.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chronobooth"

var (
	// providerRequestDuration is a histogram of AI provider call duration.
	providerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of AI provider calls in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "operation"},
	)

	// providerRequestsTotal is a counter of AI provider calls.
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of AI provider calls",
		},
		[]string{"provider", "operation", "status"}, // status: success, error
	)

	// transitionsTotal counts state machine transitions.
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Total number of session state transitions",
		},
		[]string{"from", "to"},
	)

	// sessionsActive is a gauge of sessions held in memory per front end.
	sessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently held in memory",
		},
		[]string{"frontend"},
	)

	registerOnce sync.Once
)

// Register adds all collectors to reg. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			providerRequestDuration,
			providerRequestsTotal,
			transitionsTotal,
			sessionsActive,
		)
	})
}

// RecordProviderRequest records the outcome of one provider call.
func RecordProviderRequest(provider, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	providerRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
	providerRequestsTotal.WithLabelValues(provider, operation, status).Inc()
}

// RecordTransition counts a state change.
func RecordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

// SetSessionsActive publishes the current session count of one front end.
func SetSessionsActive(frontend string, n int) {
	sessionsActive.WithLabelValues(frontend).Set(float64(n))
}
