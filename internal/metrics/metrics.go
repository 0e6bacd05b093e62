package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vik-s/pymeasure/internal/audit"
	"github.com/vik-s/pymeasure/internal/instrument"
)

const namespace = "pymeasure"

// Metrics holds the collectors and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	Transactions *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	Operations   *prometheus.CounterVec
	Instruments  prometheus.Gauge
}

// New creates the collectors on a private registry, together with the
// process and runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scpi",
				Name:      "transactions_total",
				Help:      "SCPI transactions by instrument, kind and outcome",
			},
			[]string{"instrument", "kind", "outcome"},
		),

		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scpi",
				Name:      "transaction_duration_seconds",
				Help:      "SCPI transaction latency in seconds",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 10},
			},
			[]string{"instrument", "kind"},
		),

		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "property",
				Name:      "operations_total",
				Help:      "Property get and set operations by outcome",
			},
			[]string{"instrument", "operation", "outcome"},
		),

		Instruments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "instruments",
				Help:      "Number of open instrument sessions",
			},
		),
	}

	m.registry.MustRegister(
		m.Transactions,
		m.Latency,
		m.Operations,
		m.Instruments,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe implements instrument.Observer.
func (m *Metrics) Observe(tx instrument.Transaction) {
	kind := "write"
	if tx.Query {
		kind = "query"
	}
	m.Transactions.WithLabelValues(tx.Instrument, kind, audit.Code(tx.Err)).Inc()
	m.Latency.WithLabelValues(tx.Instrument, kind).Observe(tx.Duration.Seconds())
}

// ObserveOperation counts one property operation.
func (m *Metrics) ObserveOperation(instrumentName, operation string, err error) {
	m.Operations.WithLabelValues(instrumentName, operation, audit.Code(err)).Inc()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
