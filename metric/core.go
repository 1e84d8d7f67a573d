package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "semflow"

// Metrics contains the message-lifecycle metrics shared by every node
type Metrics struct {
	ContextsOpened     *prometheus.CounterVec
	ContextsFinalized  *prometheus.CounterVec
	OpenContexts       *prometheus.GaugeVec
	ContextDuration    *prometheus.HistogramVec
	Sends              *prometheus.CounterVec
	DoubleFinalize     *prometheus.CounterVec
	SignatureFallbacks *prometheus.CounterVec
	Dispatches         *prometheus.CounterVec
	DispatchFailures   *prometheus.CounterVec
	CatchDrops         prometheus.Counter
}

// NewMetrics creates a new, unregistered Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ContextsOpened: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "contexts",
				Name:      "opened_total",
				Help:      "Invocation contexts created, by node and callback signature",
			},
			[]string{"node", "signature"},
		),

		ContextsFinalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "contexts",
				Name:      "finalized_total",
				Help:      "Invocation contexts finalized (success, error, inferred, timeout)",
			},
			[]string{"node", "outcome"},
		),

		OpenContexts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "contexts",
				Name:      "open",
				Help:      "Invocation contexts currently open",
			},
			[]string{"node"},
		),

		ContextDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "contexts",
				Name:      "duration_seconds",
				Help:      "Time from context creation to finalization",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"node"},
		),

		Sends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sends",
				Name:      "total",
				Help:      "Messages sent by nodes, by correlation (bound, shared, late, uncorrelated)",
			},
			[]string{"node", "correlation"},
		),

		DoubleFinalize: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "contexts",
				Name:      "double_finalize_total",
				Help:      "Finalize attempts discarded because the context was already finalized",
			},
			[]string{"node"},
		),

		SignatureFallbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "handlers",
				Name:      "signature_fallback_total",
				Help:      "Handlers with unrecognized arity registered as legacy",
			},
			[]string{"node"},
		),

		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "total",
				Help:      "Observer deliveries, by kind (complete, catch)",
			},
			[]string{"kind"},
		),

		DispatchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "failures_total",
				Help:      "Observer deliveries that failed, by kind",
			},
			[]string{"kind"},
		),

		CatchDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatch",
				Name:      "catch_dropped_total",
				Help:      "Errors dropped after exceeding the catch hop limit or finding no catch node",
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ContextsOpened,
		m.ContextsFinalized,
		m.OpenContexts,
		m.ContextDuration,
		m.Sends,
		m.DoubleFinalize,
		m.SignatureFallbacks,
		m.Dispatches,
		m.DispatchFailures,
		m.CatchDrops,
	}
}

// RecordContextOpened counts a new invocation context
func (m *Metrics) RecordContextOpened(node, signature string) {
	if m == nil {
		return
	}
	m.ContextsOpened.WithLabelValues(node, signature).Inc()
	m.OpenContexts.WithLabelValues(node).Inc()
}

// RecordContextFinalized counts a finalization and observes its duration
func (m *Metrics) RecordContextFinalized(node, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ContextsFinalized.WithLabelValues(node, outcome).Inc()
	m.OpenContexts.WithLabelValues(node).Dec()
	m.ContextDuration.WithLabelValues(node).Observe(duration.Seconds())
}

// RecordSend counts a message sent by a node
func (m *Metrics) RecordSend(node, correlation string) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(node, correlation).Inc()
}

// RecordDoubleFinalize counts a discarded finalize attempt
func (m *Metrics) RecordDoubleFinalize(node string) {
	if m == nil {
		return
	}
	m.DoubleFinalize.WithLabelValues(node).Inc()
}

// RecordSignatureFallback counts a handler registered through the legacy fallback
func (m *Metrics) RecordSignatureFallback(node string) {
	if m == nil {
		return
	}
	m.SignatureFallbacks.WithLabelValues(node).Inc()
}

// RecordDispatch counts an observer delivery and, when err is set, its failure
func (m *Metrics) RecordDispatch(kind string, err error) {
	if m == nil {
		return
	}
	m.Dispatches.WithLabelValues(kind).Inc()
	if err != nil {
		m.DispatchFailures.WithLabelValues(kind).Inc()
	}
}

// RecordCatchDrop counts an error that reached no catch node
func (m *Metrics) RecordCatchDrop() {
	if m == nil {
		return
	}
	m.CatchDrops.Inc()
}
