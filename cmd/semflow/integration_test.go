//go:build integration

package main

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semflow/config"
	"github.com/c360/semflow/route"
	"github.com/c360/semflow/testutil"
)

const graph = `
nodes:
  - id: stamp
    kind: passthrough
    config:
      set:
        stage: stamped
  - id: seen
    kind: complete
observers:
  complete:
    - node: seen
      targets: [stamp]
`

func TestStart_BridgesIngressToEgress(t *testing.T) {
	url := testutil.StartNATS(t)

	cfg, err := config.Parse([]byte(graph), config.FormatYAML)
	require.NoError(t, err)
	cfg.NATS.URL = url
	cfg.NATS.Prefix = "itest"
	cfg.Metrics.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := start(ctx, cfg, setupLogger(io.Discard, "error", "json"))
	require.NoError(t, err)
	defer func() { _ = a.shutdown(context.Background()) }()

	watcher, err := nats.Connect(url)
	require.NoError(t, err)
	defer watcher.Close()

	stamped, err := watcher.SubscribeSync(route.OutSubject("itest", "stamp"))
	require.NoError(t, err)
	completed, err := watcher.SubscribeSync(route.OutSubject("itest", "seen"))
	require.NoError(t, err)
	require.NoError(t, watcher.Flush())

	require.NoError(t, watcher.Publish(route.InSubject("itest", "stamp"), []byte(testutil.TestMessageJSON)))

	raw, err := stamped.NextMsg(5 * time.Second)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw.Data, &out))
	assert.Equal(t, "stamped", out["stage"])

	raw, err = completed.NextMsg(5 * time.Second)
	require.NoError(t, err)
	var done map[string]any
	require.NoError(t, json.Unmarshal(raw.Data, &done))
	source, ok := done["complete"].(map[string]any)["source"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "stamp", source["id"])

	status := a.healthChecker().Run(ctx)
	assert.True(t, status.IsHealthy(), "%+v", status)
}
