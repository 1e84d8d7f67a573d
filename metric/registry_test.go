package metric

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	semerrors "github.com/c360/semflow/errors"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("test-service", "test_counter", counter))
	counter.Inc()

	metricFamilies, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_counter" {
			found = true
			break
		}
	}
	assert.True(t, found, "Counter should be registered in Prometheus registry")
}

func TestMetricsRegistry_DuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "dup"})
	require.NoError(t, registry.RegisterGauge("svc", "dup_gauge", gauge))

	err := registry.RegisterGauge("svc", "dup_gauge", gauge)
	require.Error(t, err)
	assert.True(t, semerrors.IsInvalid(err))

	other := prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup_gauge", Help: "dup"})
	err = registry.RegisterGauge("other-svc", "dup_gauge", other)
	require.Error(t, err, "prometheus rejects the same metric name twice")
	assert.True(t, semerrors.IsInvalid(err))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "unreg_total", Help: "x"}, []string{"a"})
	require.NoError(t, registry.RegisterCounterVec("svc", "unreg_total", vec))

	assert.True(t, registry.Unregister("svc", "unreg_total"))
	assert.False(t, registry.Unregister("svc", "unreg_total"))
	assert.NoError(t, registry.RegisterCounterVec("svc", "unreg_total", vec), "name is free again")
}

func TestMetrics_Record(t *testing.T) {
	m := NewMetricsRegistry().CoreMetrics()

	m.RecordContextOpened("n1", "modern")
	m.RecordContextOpened("n1", "modern")
	m.RecordContextFinalized("n1", "success", 5*time.Millisecond)
	m.RecordSend("n1", "bound")
	m.RecordDoubleFinalize("n1")
	m.RecordSignatureFallback("n2")
	m.RecordDispatch("catch", errors.New("observer failed"))
	m.RecordDispatch("complete", nil)
	m.RecordCatchDrop()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ContextsOpened.WithLabelValues("n1", "modern")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OpenContexts.WithLabelValues("n1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ContextsFinalized.WithLabelValues("n1", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sends.WithLabelValues("n1", "bound")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DoubleFinalize.WithLabelValues("n1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignatureFallbacks.WithLabelValues("n2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchFailures.WithLabelValues("catch")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.DispatchFailures.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CatchDrops))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordContextOpened("n", "legacy")
		m.RecordContextFinalized("n", "error", time.Second)
		m.RecordSend("n", "shared")
		m.RecordDoubleFinalize("n")
		m.RecordSignatureFallback("n")
		m.RecordDispatch("complete", nil)
		m.RecordCatchDrop()
	})

	var r *MetricsRegistry
	assert.Nil(t, r.CoreMetrics())
}

func TestServer_Handler(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordContextOpened("n1", "legacy")

	handler, err := NewServer(0, "", registry).Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "semflow_contexts_opened_total"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "OK", rec.Body.String())

	_, err = NewServer(0, "", nil).Handler()
	assert.True(t, semerrors.IsFatal(err))
}

func TestServer_CustomHealthHandler(t *testing.T) {
	server := NewServer(0, "", NewMetricsRegistry())
	server.SetHealthHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	handler, err := server.Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
