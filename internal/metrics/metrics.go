// Package metrics holds the Prometheus collectors for entry point invocations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "serveractions"

// Metrics owns a registry and the collectors registered on it. Each server gets its own so tests
// can build several without duplicate registration.
type Metrics struct {
	Registry *prometheus.Registry

	inFlight    prometheus.Gauge
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	throttled   *prometheus.CounterVec
}

// New creates the collectors and registers them together with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "inflight_invocations",
			Help:      "Current number of in-flight entry point invocations.",
		}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "invocations_total",
			Help:      "Total entry point invocations by action, gRPC code and outcome kind.",
		}, []string{"action", "code", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "invocation_duration_seconds",
			Help:      "Duration of entry point invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}, []string{"action"}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "action",
			Name:      "rate_limited_total",
			Help:      "Invocations rejected by the per-caller rate limit.",
		}, []string{"action"}),
	}
	m.Registry.MustRegister(
		m.inFlight,
		m.invocations,
		m.duration,
		m.throttled,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Start marks an invocation as in flight. The returned func records its outcome and must be called once.
func (m *Metrics) Start(action string) func(code, kind string) {
	if m == nil {
		return func(string, string) {}
	}
	start := time.Now()
	m.inFlight.Inc()
	return func(code, kind string) {
		m.inFlight.Dec()
		m.invocations.WithLabelValues(action, code, kind).Inc()
		m.duration.WithLabelValues(action).Observe(time.Since(start).Seconds())
	}
}

// Throttled counts a rate-limit rejection.
func (m *Metrics) Throttled(action string) {
	if m == nil {
		return
	}
	m.throttled.WithLabelValues(action).Inc()
}
