package message

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semflow/errors"
)

func TestMessage_PropertyOrder(t *testing.T) {
	m := New()
	m.Set("topic", "sensors")
	m.Set("payload", 1)
	m.Set("count", 3)
	m.Set("topic", "updated")

	assert.Equal(t, []string{"topic", "payload", "count"}, m.Keys())
	assert.Equal(t, "updated", m.GetString("topic"))

	assert.True(t, m.Delete("payload"))
	assert.False(t, m.Delete("payload"))
	assert.Equal(t, []string{"topic", "count"}, m.Keys())
	assert.Equal(t, 2, m.Len())
}

func TestMessage_IdentityIsNotAProperty(t *testing.T) {
	m := New()
	m.Set(IDKey, "forged")
	assert.Empty(t, m.ID())
	assert.Equal(t, 0, m.Len())
}

func TestAssignIdentity_Idempotent(t *testing.T) {
	m := NewWithPayload("x")

	assert.True(t, AssignIdentity(m, func() string { return "id-1" }))
	assert.Equal(t, "id-1", m.ID())

	assert.False(t, AssignIdentity(m, func() string { return "id-2" }))
	assert.Equal(t, "id-1", m.ID(), "identity is immutable once assigned")

	assert.False(t, Inherit(m, "id-3"))
	assert.Equal(t, "id-1", m.ID())
}

func TestAssignIdentity_DefaultGenerator(t *testing.T) {
	a, b := New(), New()
	require.True(t, AssignIdentity(a, nil))
	require.True(t, AssignIdentity(b, nil))
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestMessage_CloneKeepsIdentity(t *testing.T) {
	m := New()
	Inherit(m, "origin")
	m.Set("payload", map[string]any{"temp": 21.5, "tags": []any{"a"}})

	clones := []*Message{m.Clone(), m.Clone(), m.Clone()}
	for _, c := range clones {
		assert.Equal(t, "origin", c.ID())
	}

	inner := clones[0].Payload().(map[string]any)
	inner["temp"] = 99.0
	inner["tags"].([]any)[0] = "changed"

	orig := m.Payload().(map[string]any)
	assert.Equal(t, 21.5, orig["temp"], "clone must not share nested maps")
	assert.Equal(t, "a", orig["tags"].([]any)[0], "clone must not share nested slices")
}

func TestMessage_JSONRoundTripKeepsOrder(t *testing.T) {
	m := New()
	Inherit(m, "abc")
	m.Set("zeta", "last-alphabetically")
	m.Set("alpha", true)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"_msgid":"abc","zeta":"last-alphabetically","alpha":true}`, string(data))

	decoded := New()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, "abc", decoded.ID())
	assert.Equal(t, []string{"zeta", "alpha"}, decoded.Keys())
}

func TestMessage_UnmarshalRejectsNonObject(t *testing.T) {
	m := New()
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), m))
}

func TestMessage_UnmarshalTruncatedInput(t *testing.T) {
	m := New()
	err := m.UnmarshalJSON([]byte(`{"payload":`))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrParsingFailed)
	assert.True(t, errors.IsInvalid(err))
}

func TestMessage_MarshalWithoutIdentity(t *testing.T) {
	m := NewWithPayload("hi")
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"payload":"hi"}`, string(data))
}
