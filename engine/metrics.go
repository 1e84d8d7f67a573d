package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/semflow/metric"
)

// engineMetrics holds Prometheus metrics for deploy operations.
type engineMetrics struct {
	deploys        *prometheus.CounterVec   // By status (success/failure)
	deployDuration *prometheus.HistogramVec // By status
	deployedNodes  prometheus.Gauge
}

// newEngineMetrics creates and registers engine metrics with the provided registry.
func newEngineMetrics(registry *metric.MetricsRegistry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &engineMetrics{
		deploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semflow",
			Subsystem: "engine",
			Name:      "deploys_total",
			Help:      "Total number of graph deploy operations",
		}, []string{"status"}),

		deployDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semflow",
			Subsystem: "engine",
			Name:      "deploy_duration_seconds",
			Help:      "Graph deploy duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"status"}),

		deployedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "semflow",
			Subsystem: "engine",
			Name:      "deployed_nodes",
			Help:      "Number of nodes currently deployed",
		}),
	}

	if err := registry.RegisterCounterVec("engine", "deploys_total", m.deploys); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("engine", "deploy_duration", m.deployDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("engine", "deployed_nodes", m.deployedNodes); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *engineMetrics) recordDeploy(success bool, duration time.Duration) {
	if m == nil {
		return
	}
	status := "failure"
	if success {
		status = "success"
	}
	m.deploys.WithLabelValues(status).Inc()
	m.deployDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *engineMetrics) setDeployedNodes(n int) {
	if m == nil {
		return
	}
	m.deployedNodes.Set(float64(n))
}
