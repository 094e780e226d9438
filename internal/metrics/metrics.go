// Package metrics exposes Prometheus instruments for reviews and sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "drawing_checker"

// Metrics holds the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	reviews        *prometheus.CounterVec
	scores         prometheus.Histogram
	reviewDuration prometheus.Histogram
	sessions       *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// New creates the collectors on a fresh registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reviews_total",
			Help:      "Reviewed drawings by outcome (ok or error kind).",
		}, []string{"outcome"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "review_score",
			Help:      "Compliance scores of reviewed drawings.",
			Buckets:   prometheus.LinearBuckets(0, 5, 7),
		}),
		reviewDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "review_duration_seconds",
			Help:      "Time spent reviewing one drawing.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Finished review sessions by final status.",
		}, []string{"status"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently being reviewed.",
		}),
	}

	m.registry.MustRegister(
		m.reviews, m.scores, m.reviewDuration, m.sessions, m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReview records one reviewed drawing. outcome is "ok" or an error kind;
// the score is only observed when it was computed.
func (m *Metrics) ObserveReview(outcome string, score float64, scored bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(outcome).Inc()
	m.reviewDuration.Observe(elapsed.Seconds())
	if scored {
		m.scores.Observe(score)
	}
}

// SessionStarted marks a session as running.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

// SessionFinished records the final status of a running session.
func (m *Metrics) SessionFinished(status string) {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
	m.sessions.WithLabelValues(status).Inc()
}
