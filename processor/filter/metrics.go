package filter

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semflow/metric"
)

// filterMetrics holds Prometheus metrics shared by every filter node of one
// registry. Series are labelled by node.
type filterMetrics struct {
	messagesTotal      *prometheus.CounterVec   // By node and status (matched/rejected)
	evaluationDuration *prometheus.HistogramVec // By node
}

var (
	sharedMu      sync.Mutex
	sharedMetrics = map[*metric.MetricsRegistry]*filterMetrics{}
)

// newFilterMetrics returns the metrics registered with registry, registering
// them on first use.
func newFilterMetrics(registry *metric.MetricsRegistry) (*filterMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()

	if m, ok := sharedMetrics[registry]; ok {
		return m, nil
	}

	m := &filterMetrics{
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semflow",
			Subsystem: "filter",
			Name:      "messages_total",
			Help:      "Total number of messages evaluated by filter nodes",
		}, []string{"node", "status"}),

		evaluationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semflow",
			Subsystem: "filter",
			Name:      "evaluation_duration_seconds",
			Help:      "Filter evaluation duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"node"}),
	}

	if err := registry.RegisterCounterVec("filter", "messages_total", m.messagesTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("filter", "evaluation_duration", m.evaluationDuration); err != nil {
		return nil, err
	}

	sharedMetrics[registry] = m
	return m, nil
}

// recordEvaluation records a filter evaluation operation.
func (m *filterMetrics) recordEvaluation(node string, matched bool, duration time.Duration) {
	if m == nil {
		return
	}

	status := "rejected"
	if matched {
		status = "matched"
	}
	m.messagesTotal.WithLabelValues(node, status).Inc()
	m.evaluationDuration.WithLabelValues(node).Observe(duration.Seconds())
}
