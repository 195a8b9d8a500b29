// ABOUTME: Prometheus metrics for request admission and dispatch.
// ABOUTME: Tracks admission outcomes, dispatch latency, and in-flight slots.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks admission and dispatch telemetry.
//
// Metrics:
//   - aplmint_requests_total: request count by admission outcome
//   - aplmint_dispatch_duration_seconds: completion call latency by model
//   - aplmint_dispatch_failures_total: classified dispatch failures
//   - aplmint_in_flight_requests: users currently holding a processing slot
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchFailures *prometheus.CounterVec
}

// New creates and registers the aplmint metrics on a fresh registry.
// inFlight is sampled on every scrape for the in-flight gauge.
func New(inFlight func() int) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aplmint",
				Name:      "requests_total",
				Help:      "Total number of inbound requests by admission outcome",
			},
			[]string{"outcome"},
		),

		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "aplmint",
				Name:      "dispatch_duration_seconds",
				Help:      "Duration of completion provider calls in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to 32s
			},
			[]string{"model"},
		),

		dispatchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "aplmint",
				Name:      "dispatch_failures_total",
				Help:      "Classified completion provider failures",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.dispatchDuration,
		m.dispatchFailures,
	)

	if inFlight != nil {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "aplmint",
				Name:      "in_flight_requests",
				Help:      "Users currently holding a processing slot",
			},
			func() float64 { return float64(inFlight()) },
		))
	}

	return m
}

// RecordRequest counts one inbound request with its admission outcome.
func (m *Metrics) RecordRequest(outcome string) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

// RecordDispatch observes the latency of one completion call.
func (m *Metrics) RecordDispatch(model string, elapsed time.Duration) {
	m.dispatchDuration.WithLabelValues(model).Observe(elapsed.Seconds())
}

// RecordDispatchFailure counts one classified dispatch failure.
func (m *Metrics) RecordDispatchFailure(kind string) {
	m.dispatchFailures.WithLabelValues(kind).Inc()
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
