package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semflow/config"
)

const minimalConfig = `
nodes:
  - id: a
    kind: passthrough
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "semflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalConfig), 0o600))
	return path
}

func TestParseFlags_Defaults(t *testing.T) {
	t.Setenv("SEMFLOW_CONFIG", "")
	t.Setenv("SEMFLOW_SHUTDOWN_TIMEOUT", "")

	cli, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "configs/semflow.yaml", cli.ConfigPath)
	assert.Equal(t, -1, cli.MetricsPort)
	assert.Equal(t, 30*time.Second, cli.ShutdownTimeout)
	assert.Empty(t, cli.LogLevel)
}

func TestParseFlags_EnvFallback(t *testing.T) {
	t.Setenv("SEMFLOW_CONFIG", "/etc/semflow/graph.toml")
	t.Setenv("SEMFLOW_SHUTDOWN_TIMEOUT", "5s")

	cli, err := parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "/etc/semflow/graph.toml", cli.ConfigPath)
	assert.Equal(t, 5*time.Second, cli.ShutdownTimeout)
}

func TestParseFlags_Explicit(t *testing.T) {
	cli, err := parseFlags([]string{"-c", "x.json", "-log-level", "debug", "-metrics-port", "0", "-validate"})
	require.NoError(t, err)
	assert.Equal(t, "x.json", cli.ConfigPath)
	assert.Equal(t, "debug", cli.LogLevel)
	assert.Equal(t, 0, cli.MetricsPort)
	assert.True(t, cli.Validate)

	_, err = parseFlags([]string{"-unknown"})
	assert.Error(t, err)
}

func TestValidateFlags(t *testing.T) {
	path := writeConfig(t)

	assert.NoError(t, validateFlags(&CLIConfig{ConfigPath: path, ShutdownTimeout: time.Second}))
	assert.Error(t, validateFlags(&CLIConfig{ConfigPath: "/does/not/exist", ShutdownTimeout: time.Second}))
	assert.Error(t, validateFlags(&CLIConfig{ConfigPath: path, LogLevel: "loud", ShutdownTimeout: time.Second}))
	assert.Error(t, validateFlags(&CLIConfig{ConfigPath: path, LogFormat: "xml", ShutdownTimeout: time.Second}))
	assert.Error(t, validateFlags(&CLIConfig{ConfigPath: path}))
	assert.NoError(t, validateFlags(&CLIConfig{ShowVersion: true}))
}

func TestApplyCLIOverrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.Log.Level = "info"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 9090

	applyCLIOverrides(cfg, &CLIConfig{MetricsPort: -1})
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)

	applyCLIOverrides(cfg, &CLIConfig{LogLevel: "debug", LogFormat: "text", MetricsPort: 0})
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestRun_ValidateOnly(t *testing.T) {
	path := writeConfig(t)
	defer slog.SetDefault(slog.Default())

	require.NoError(t, run([]string{"-config", path, "-validate", "-log-level", "error"}))
	assert.Error(t, run([]string{"-config", "/does/not/exist"}))
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(&buf, "warn", "json")

	logger.Info("Hidden")
	logger.Warn("Shown", "node", "a")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Shown", entry["msg"])
	assert.Equal(t, appName, entry["service"])
	assert.Equal(t, "a", entry["node"])
}

func TestRetryConfig(t *testing.T) {
	rc := retryConfig(config.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: config.Duration(50 * time.Millisecond),
		MaxDelay:     config.Duration(time.Second),
	})
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, rc.InitialDelay)
	assert.Equal(t, time.Second, rc.MaxDelay)
	assert.Equal(t, 2.0, rc.Multiplier)
}
