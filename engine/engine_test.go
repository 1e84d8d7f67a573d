package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/componentregistry"
	"github.com/c360/semflow/config"
	semerrors "github.com/c360/semflow/errors"
	"github.com/c360/semflow/invocation"
	"github.com/c360/semflow/message"
	"github.com/c360/semflow/metric"
	"github.com/c360/semflow/testutil"
)

const graphDoc = `{
  "runtime": {"max_catch_hops": 3},
  "flows": [{"id": "main"}, {"id": "sub", "parent": "main"}],
  "nodes": [
    {"id": "ingest", "kind": "passthrough", "flow": "main"},
    {"id": "boom", "kind": "fail", "flow": "sub", "config": {"message": "bad reading"}},
    {"id": "stuck", "kind": "delay", "flow": "main", "timeout": "20ms", "config": {"delay": "1h"}},
    {"id": "audit", "kind": "complete", "flow": "main"},
    {"id": "errors", "kind": "catch", "flow": "main"}
  ],
  "observers": {
    "complete": [{"node": "audit", "targets": ["ingest"]}],
    "catch": [{"node": "errors", "scope": "flow"}]
  }
}`

func newEngine(t *testing.T, opts ...Option) (*Engine, *testutil.Recorder) {
	t.Helper()
	registry := component.NewRegistry()
	require.NoError(t, componentregistry.Register(registry))

	recorder := testutil.NewRecorder()
	clock := testutil.NewClock()
	opts = append([]Option{WithClock(clock.Now), WithIDGenerator(testutil.SequentialIDs("m"))}, opts...)
	eng, err := New(registry, recorder, opts...)
	require.NoError(t, err)
	return eng, recorder
}

func parse(t *testing.T, doc string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(doc), config.FormatJSON)
	require.NoError(t, err)
	return cfg
}

func TestEngine_DeployAndRun(t *testing.T) {
	eng, recorder := newEngine(t)
	require.NoError(t, eng.Deploy(parse(t, graphDoc)))

	assert.Equal(t, []string{"audit", "boom", "errors", "ingest", "stuck"}, eng.NodeIDs())
	assert.Equal(t, "fail", eng.Nodes()["boom"])

	t.Run("completion reaches the complete observer", func(t *testing.T) {
		ctx, err := eng.Invoke("ingest", testutil.NewMessage("x", "sensors/a"))
		require.NoError(t, err)
		assert.Equal(t, invocation.FinalizedSuccess, ctx.State())

		require.Len(t, recorder.From("ingest"), 1)
		observed := recorder.From("audit")
		require.Len(t, observed, 1)

		record, ok := observed[0].Get("complete")
		require.True(t, ok)
		source := record.(map[string]any)["source"].(map[string]any)
		assert.Equal(t, "ingest", source["id"])
		assert.Equal(t, ctx.ID(), source["context"])
	})

	t.Run("error in a subflow bubbles to the enclosing catch", func(t *testing.T) {
		ctx, err := eng.Invoke("boom", testutil.NewMessage("x", ""))
		require.NoError(t, err)
		assert.Equal(t, invocation.FinalizedError, ctx.State())

		caught := recorder.From("errors")
		require.Len(t, caught, 1)
		record, _ := caught[0].Get("error")
		assert.Equal(t, "bad reading", record.(map[string]any)["message"])
	})

	t.Run("node timeout force-finalizes", func(t *testing.T) {
		before := len(recorder.From("errors"))
		ctx, err := eng.Invoke("stuck", testutil.NewMessage("x", ""))
		require.NoError(t, err)
		assert.True(t, ctx.IsOpen())

		require.Eventually(t, func() bool {
			return len(recorder.From("errors")) == before+1
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, invocation.OutcomeTimeout, ctx.Outcome())
		assert.True(t, errors.Is(ctx.Err(), semerrors.ErrTimeout))
	})
}

func TestEngine_RuntimeDefaultTimeout(t *testing.T) {
	rt := config.RuntimeConfig{NodeTimeout: config.Duration(15 * time.Millisecond)}
	eng, _ := newEngine(t, WithRuntime(rt))
	require.NoError(t, eng.Deploy(parse(t, `{"nodes": [{"id": "slow", "kind": "delay", "config": {"delay": "1h"}}]}`)))

	ctx, err := eng.Invoke("slow", testutil.NewMessage("x", ""))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !ctx.IsOpen() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, invocation.OutcomeTimeout, ctx.Outcome())
}

func TestEngine_Redeploy(t *testing.T) {
	eng, recorder := newEngine(t)
	require.NoError(t, eng.Deploy(parse(t, graphDoc)))
	require.NoError(t, eng.Deploy(parse(t, `{"nodes": [{"id": "only", "kind": "passthrough"}]}`)))

	assert.Equal(t, []string{"only"}, eng.NodeIDs())

	_, err := eng.Invoke("ingest", testutil.NewMessage("x", ""))
	assert.True(t, errors.Is(err, semerrors.ErrNodeNotFound))

	_, err = eng.Invoke("only", testutil.NewMessage("x", ""))
	require.NoError(t, err)
	assert.Len(t, recorder.From("only"), 1)
	assert.Empty(t, recorder.From("audit"), "old observers are unsubscribed")
}

func TestEngine_FailedDeployRollsBack(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	eng, _ := newEngine(t, WithMetrics(registry))

	cfg := parse(t, `{"nodes": [{"id": "a", "kind": "passthrough"}, {"id": "b", "kind": "no-such-kind"}]}`)
	err := eng.Deploy(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-kind")
	assert.Empty(t, eng.NodeIDs())

	_, err = eng.Invoke("a", testutil.NewMessage("x", ""))
	assert.Error(t, err)

	require.NoError(t, eng.Deploy(parse(t, `{"nodes": [{"id": "a", "kind": "passthrough"}]}`)))
	assert.Equal(t, 1.0, promtest.ToFloat64(eng.metrics.deploys.WithLabelValues("failure")))
	assert.Equal(t, 1.0, promtest.ToFloat64(eng.metrics.deploys.WithLabelValues("success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(eng.metrics.deployedNodes))
}

func TestEngine_Undeploy(t *testing.T) {
	eng, _ := newEngine(t)
	require.NoError(t, eng.Deploy(parse(t, graphDoc)))
	eng.Undeploy()

	assert.Empty(t, eng.NodeIDs())
	assert.Empty(t, eng.Scheduler().Nodes())
	assert.False(t, eng.Dispatcher().Unsubscribe("audit"))
}

func TestEngine_UndeployCancelsNodeContext(t *testing.T) {
	registry := component.NewRegistry()
	var nodeCtx context.Context
	require.NoError(t, registry.RegisterFactory(&component.Registration{
		Name:      "holder",
		Version:   "0.1.0",
		Signature: component.Modern,
		Factory: func(_ json.RawMessage, deps component.Dependencies) (any, error) {
			nodeCtx = deps.Context
			return component.ModernHandler(func(_ *message.Message, _ component.SendFunc, done component.DoneFunc) {
				done(nil)
			}), nil
		},
	}))
	eng, err := New(registry, testutil.NewRecorder())
	require.NoError(t, err)

	require.NoError(t, eng.Deploy(parse(t, `{"nodes": [{"id": "h", "kind": "holder"}]}`)))
	require.NotNil(t, nodeCtx)
	assert.NoError(t, nodeCtx.Err())

	first := nodeCtx
	require.NoError(t, eng.Deploy(parse(t, `{"nodes": [{"id": "h", "kind": "holder"}]}`)))
	assert.ErrorIs(t, first.Err(), context.Canceled, "redeploy ends the previous graph")

	eng.Undeploy()
	assert.ErrorIs(t, nodeCtx.Err(), context.Canceled)
}

func TestEngine_SubmitRunsOnLoop(t *testing.T) {
	eng, recorder := newEngine(t)
	require.NoError(t, eng.Deploy(parse(t, graphDoc)))

	assert.ErrorIs(t, eng.Submit("ingest", testutil.NewMessage("x", "")), semerrors.ErrNotRunning)

	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.Submit("ingest", testutil.NewMessage("x", "sensors/a")))
	require.True(t, recorder.WaitFor(2, time.Second), "ingest send plus the audit record")
	require.NoError(t, eng.Stop(time.Second))

	assert.Len(t, recorder.From("ingest"), 1)
	assert.Len(t, recorder.From("audit"), 1)
}

func TestEngine_InvalidArguments(t *testing.T) {
	_, err := New(nil, testutil.NewRecorder())
	assert.Error(t, err)

	eng, _ := newEngine(t)
	assert.Error(t, eng.Deploy(nil))
	assert.NotNil(t, eng.Tracker())
}
