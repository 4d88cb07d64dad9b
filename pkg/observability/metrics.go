package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/palette/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "palette"

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Executions  *prometheus.CounterVec
	InFlight    prometheus.Gauge
	StreamBytes *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Selections  *prometheus.CounterVec
	SourceLoads *prometheus.CounterVec
	SourceItems *prometheus.GaugeVec
	gatherer    prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg.
// Passing a *prometheus.Registry also makes Handler serve exactly these metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Executions by origin and terminal status.",
		}, []string{"origin", "status"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executions_in_flight",
			Help:      "Executions currently streaming.",
		}),
		StreamBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_bytes_total",
			Help:      "Bytes piped into transcript messages.",
		}, []string{"origin"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Duration of executions from start to terminal status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"origin"}),
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Items chosen from the overlay.",
		}, []string{"origin"}),
		SourceLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_loads_total",
			Help:      "Source loads by result.",
		}, []string{"source", "result"}),
		SourceItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_items",
			Help:      "Items contributed by each source after its last successful load.",
		}, []string{"source"}),
		gatherer: prometheus.DefaultGatherer,
	}

	reg.MustRegister(m.Executions, m.InFlight, m.StreamBytes, m.Duration, m.Selections, m.SourceLoads, m.SourceItems)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnExecutionStart: func(_ context.Context, e *domain.ExecutionEvent) {
			m.InFlight.Inc()
		},
		OnExecutionChunk: func(_ context.Context, e *domain.ExecutionEvent) {
			m.StreamBytes.WithLabelValues(string(e.Origin)).Add(float64(e.Bytes))
		},
		OnExecutionEnd: func(_ context.Context, e *domain.ExecutionEvent) {
			m.InFlight.Dec()
			m.Executions.WithLabelValues(string(e.Origin), string(e.Status)).Inc()
			m.Duration.WithLabelValues(string(e.Origin)).Observe(e.Duration.Seconds())
		},
		OnItemSelected: func(_ context.Context, e *domain.SelectionEvent) {
			m.Selections.WithLabelValues(string(e.Origin)).Inc()
		},
		OnSourceLoaded: func(_ context.Context, e *domain.SourceEvent) {
			if e.Err != nil {
				m.SourceLoads.WithLabelValues(e.SourceID, "error").Inc()
				return
			}
			m.SourceLoads.WithLabelValues(e.SourceID, "ok").Inc()
			m.SourceItems.WithLabelValues(e.SourceID).Set(float64(e.Items))
		},
	}
}
