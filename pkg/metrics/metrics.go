package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the certificate service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	batches        prometheus.Counter
	outcomes       *prometheus.CounterVec
	retries        prometheus.Counter
	fallbacks      *prometheus.CounterVec
	renderDuration prometheus.Histogram
}

// New registers the collectors and returns them.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "certificate_batches_total",
			Help: "Total number of certificate batches consumed",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_outcomes_total",
			Help: "Per-participant outcomes by result",
		}, []string{"result"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "certificate_delivery_retries_total",
			Help: "Delivery attempts that were retried",
		}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certificate_render_fallbacks_total",
			Help: "Elements pasted without their alpha mask",
		}, []string{"element"}),
		renderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "certificate_render_duration_seconds",
			Help:    "Duration of certificate composition",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.batches, m.outcomes, m.retries, m.fallbacks, m.renderDuration)
	return m
}

func (m *Metrics) IncBatches()                { m.batches.Inc() }
func (m *Metrics) IncDelivered()              { m.outcomes.WithLabelValues("delivered").Inc() }
func (m *Metrics) IncSkipped()                { m.outcomes.WithLabelValues("skipped").Inc() }
func (m *Metrics) IncFailed()                 { m.outcomes.WithLabelValues("failed").Inc() }
func (m *Metrics) IncRetried()                { m.retries.Inc() }
func (m *Metrics) IncFallback(element string) { m.fallbacks.WithLabelValues(element).Inc() }
func (m *Metrics) ObserveRender(seconds float64) {
	m.renderDuration.Observe(seconds)
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
