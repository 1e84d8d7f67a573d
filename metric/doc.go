// Package metric provides Prometheus-based metrics for the semflow runtime.
//
// A MetricsRegistry owns a private prometheus.Registry with the Go runtime and
// process collectors, the core lifecycle Metrics, and any component metrics
// registered through the MetricsRegistrar methods:
//
//	registry := metric.NewMetricsRegistry()
//	registry.CoreMetrics().RecordContextOpened("node-1", "modern")
//
//	server := metric.NewServer(9090, "/metrics", registry)
//	go server.Start()
//
// All Record methods are safe to call on a nil *Metrics, which lets packages
// run with metrics disabled without guarding every call site.
package metric
