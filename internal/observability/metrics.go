package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the navigator collectors. A nil *Metrics discards everything.
type Metrics struct {
	registry   *prometheus.Registry
	loads      *prometheus.CounterVec
	operations *prometheus.CounterVec
	layout     prometheus.Histogram
	viewers    prometheus.Gauge
}

// NewMetrics registers the collectors on a private registry together with the
// Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seed_web",
			Subsystem: "navigator",
			Name:      "loads_total",
			Help:      "Dataset loads by source scheme and result.",
		}, []string{"scheme", "result"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seed_web",
			Subsystem: "navigator",
			Name:      "operations_total",
			Help:      "Navigator operations by kind.",
		}, []string{"op"}),
		layout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "seed_web",
			Subsystem: "navigator",
			Name:      "layout_seconds",
			Help:      "Time spent in layout and reconciliation.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "seed_web",
			Subsystem: "navigator",
			Name:      "viewers",
			Help:      "Live navigator instances.",
		}),
	}
	reg.MustRegister(
		m.loads, m.operations, m.layout, m.viewers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveLoad counts one dataset load.
func (m *Metrics) ObserveLoad(scheme, result string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(scheme, result).Inc()
}

// ObserveOperation counts one navigator operation.
func (m *Metrics) ObserveOperation(op string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op).Inc()
}

// ObserveLayout records the duration of one layout pass.
func (m *Metrics) ObserveLayout(d time.Duration) {
	if m == nil {
		return
	}
	m.layout.Observe(d.Seconds())
}

// SetViewers publishes the live viewer count.
func (m *Metrics) SetViewers(n int) {
	if m == nil {
		return
	}
	m.viewers.Set(float64(n))
}
