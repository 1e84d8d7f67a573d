package file

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semflow/component"
	semerrors "github.com/c360/semflow/errors"
	"github.com/c360/semflow/testutil"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		out = append(out, line)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestNew_Validation(t *testing.T) {
	dir := t.TempDir()
	deps := component.Dependencies{NodeID: "sink"}

	_, err := New(json.RawMessage(`{}`), deps)
	assert.True(t, semerrors.IsInvalid(err))

	_, err = New(json.RawMessage(`{"directory":"`+dir+`","format":"xml"}`), deps)
	assert.True(t, semerrors.IsInvalid(err))

	_, err = New(json.RawMessage(`{"directory":"`+dir+`","file_prefix":"../escape"}`), deps)
	assert.True(t, semerrors.IsInvalid(err))

	_, err = New(json.RawMessage(`{"directory":"`+dir+`","forward":true}`), deps)
	assert.True(t, semerrors.IsInvalid(err))
}

func TestWrite_AppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	o, err := New(json.RawMessage(`{"directory":"`+dir+`"}`), component.Dependencies{NodeID: "sink"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sink.jsonl"), o.Path())

	require.NoError(t, o.Write(testutil.NewMessage(testutil.TestPayloads[0], "sensors/a")))
	require.NoError(t, o.Write(testutil.NewMessage(testutil.TestPayloads[1], "sensors/b")))

	lines := readLines(t, o.Path())
	require.Len(t, lines, 2)
	assert.Equal(t, "sensors/a", lines[0]["topic"])
	assert.Equal(t, "sensors/b", lines[1]["topic"])
}

func TestWrite_PayloadFormatAndForward(t *testing.T) {
	dir := t.TempDir()
	emitter := &testutil.Emitter{}
	o, err := New(json.RawMessage(`{"directory":"`+dir+`","format":"payload","forward":true,"file_prefix":"out"}`),
		component.Dependencies{NodeID: "sink", Emitter: emitter})
	require.NoError(t, err)

	require.NoError(t, o.Write(testutil.NewMessage(testutil.TestPayloads[2], "sensors/c")))

	lines := readLines(t, filepath.Join(dir, "out.jsonl"))
	require.Len(t, lines, 1)
	assert.Equal(t, "baz", lines[0]["value"])
	assert.Len(t, emitter.Sent(), 1)
}

func TestNew_TruncatesWhenNotAppending(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sink.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"old":true}`+"\n"), 0o644))

	_, err := New(json.RawMessage(`{"directory":"`+dir+`","append":false}`), component.Dependencies{NodeID: "sink"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWrite_FailureIsReturned(t *testing.T) {
	dir := t.TempDir()
	o, err := New(json.RawMessage(`{"directory":"`+dir+`"}`), component.Dependencies{NodeID: "sink"})
	require.NoError(t, err)

	// A directory in place of the file makes the append fail.
	require.NoError(t, os.Mkdir(o.Path(), 0o755))
	err = o.Write(testutil.NewMessage(nil, ""))
	require.Error(t, err)
	assert.True(t, semerrors.IsTransient(err))
}

func TestRegister_LegacySignature(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	adapter, err := registry.Create(Kind, json.RawMessage(`{"directory":"`+t.TempDir()+`"}`),
		component.Dependencies{NodeID: "sink"})
	require.NoError(t, err)
	assert.Equal(t, component.Legacy, adapter.Signature())
}
