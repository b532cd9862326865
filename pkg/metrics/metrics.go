// Package metrics provides the prometheus metrics of the concern engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "concerns"

const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
	ResultRefused   = "refused"
)

// Metrics bundles the metric vectors of an engine. A nil *Metrics
// can be used and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Events   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Retries  *prometheus.CounterVec
	Concerns *prometheus.GaugeVec
}

// New creates the metrics with their own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "events_total",
			Help:      "Total number of processed events",
		}, []string{"event", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "event_duration_seconds",
			Help:      "Duration of event processing in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "commit_retries_total",
			Help:      "Total number of events repeated because of concurrent commits",
		}, []string{"event"}),
		Concerns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "live_concerns",
			Help:      "Number of live concerns",
		}, []string{"type"}),
	}
	reg.MustRegister(m.Events, m.Duration, m.Retries, m.Concerns)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler provides the HTTP handler exposing the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventDone(event, result string, start time.Time) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(event, result).Inc()
	m.Duration.WithLabelValues(event).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Retry(event string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(event).Inc()
}

// SetConcerns updates the live concern gauges from counts per type.
func (m *Metrics) SetConcerns(counts map[string]int) {
	if m == nil {
		return
	}
	for t, n := range counts {
		m.Concerns.WithLabelValues(t).Set(float64(n))
	}
}
