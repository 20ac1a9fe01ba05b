package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/n8nbridge/pkg/domain"
	"github.com/aretw0/n8nbridge/pkg/ports"
)

// OutcomeSuccess is the outcome label for delivered actions. Failures use their FailureKind.
const OutcomeSuccess = "success"

// Metrics holds the relay collectors.
type Metrics struct {
	registry    *prometheus.Registry
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

var _ ports.Observer = (*Metrics)(nil)

// NewMetrics creates the collectors on a dedicated registry, together with the
// standard Go and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "n8nbridge_relay_invocations_total",
				Help: "Total number of relayed actions by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "n8nbridge_relay_duration_seconds",
				Help:    "Duration of webhook calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
	}
	m.registry.MustRegister(
		m.invocations,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveResult implements relay.Observer. Action names are chosen by agents, so they
// stay out of the label set.
func (m *Metrics) ObserveResult(_ domain.ActionRequest, res domain.Result, elapsed time.Duration) {
	outcome := OutcomeSuccess
	if kind := domain.KindOf(res); kind != "" {
		outcome = string(kind)
	}
	m.invocations.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
