package component

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	semerrors "github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
)

type customErr struct{ msg string }

func (e *customErr) Error() string { return e.msg }

func TestAdapt_LegacyReceivesOnlyMessage(t *testing.T) {
	var got *message.Message
	a, err := Adapt(func(msg *message.Message) { got = msg })
	require.NoError(t, err)
	assert.Equal(t, Legacy, a.Signature())
	assert.NoError(t, a.Diagnostic())

	msg := message.NewWithPayload("hello")
	sendCalled := false
	require.NoError(t, a.Invoke(msg, func(*message.Message) { sendCalled = true }, nil))
	assert.Same(t, msg, got)
	assert.False(t, sendCalled)
}

func TestAdapt_ModernReceivesBoundCallbacks(t *testing.T) {
	a, err := Adapt(func(msg *message.Message, send SendFunc, done DoneFunc) {
		send(msg)
		done(nil)
	})
	require.NoError(t, err)
	assert.Equal(t, Modern, a.Signature())

	var sent *message.Message
	doneCalls := 0
	msg := message.New()
	require.NoError(t, a.Invoke(msg, func(m *message.Message) { sent = m }, func(error) { doneCalls++ }))
	assert.Same(t, msg, sent)
	assert.Equal(t, 1, doneCalls)
}

func TestAdapt_ReflectedShapes(t *testing.T) {
	type alias = func(*message.Message, func(*message.Message), func(error)) error
	boom := errors.New("boom")

	var h alias = func(msg *message.Message, send func(*message.Message), done func(error)) error {
		send(msg)
		return boom
	}
	a, err := Adapt(h)
	require.NoError(t, err)
	assert.Equal(t, Modern, a.Signature())

	sent := 0
	err = a.Invoke(message.New(), func(*message.Message) { sent++ }, func(error) {})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, sent)
}

func TestAdapt_InterfaceParameter(t *testing.T) {
	var got any
	a, err := Adapt(func(v any) { got = v })
	require.NoError(t, err)

	msg := message.New()
	require.NoError(t, a.Invoke(msg, nil, nil))
	assert.Same(t, msg, got)
}

func TestAdapt_ConcreteErrorResult(t *testing.T) {
	a, err := Adapt(func(msg *message.Message) *customErr {
		if msg.Payload() == "bad" {
			return &customErr{msg: "bad payload"}
		}
		return nil
	})
	require.NoError(t, err)

	assert.NoError(t, a.Invoke(message.NewWithPayload("ok"), nil, nil))
	assert.EqualError(t, a.Invoke(message.NewWithPayload("bad"), nil, nil), "bad payload")
}

func TestAdapt_UnrecognizedArityFallsBackToLegacy(t *testing.T) {
	tests := []struct {
		name    string
		handler func(got **message.Message, calls *int) any
		wantMsg bool
	}{
		{"zero parameters", func(_ **message.Message, calls *int) any {
			return func() { *calls++ }
		}, false},
		{"two parameters", func(got **message.Message, calls *int) any {
			return func(m *message.Message, extra SendFunc) {
				*calls++
				*got = m
				if extra != nil {
					panic("extra parameter must be zero")
				}
			}
		}, true},
		{"message second", func(got **message.Message, calls *int) any {
			return func(n int, m *message.Message) {
				*calls++
				*got = m
			}
		}, true},
		{"variadic", func(got **message.Message, calls *int) any {
			return func(args ...*message.Message) {
				*calls++
				if len(args) == 1 {
					*got = args[0]
				}
			}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *message.Message
			calls := 0
			a, err := Adapt(tt.handler(&got, &calls))
			require.NoError(t, err)

			assert.Equal(t, Legacy, a.Signature())
			require.Error(t, a.Diagnostic())
			assert.Equal(t, semerrors.KindSignatureDetection, semerrors.KindOf(a.Diagnostic()))

			msg := message.New()
			require.NoError(t, a.Invoke(msg, nil, nil))
			assert.Equal(t, 1, calls)
			if tt.wantMsg {
				assert.Same(t, msg, got)
			}
		})
	}
}

func TestAdapt_Rejects(t *testing.T) {
	var nilLegacy LegacyHandler
	tests := []struct {
		name    string
		handler any
	}{
		{"nil", nil},
		{"not a function", "handler"},
		{"nil typed function", nilLegacy},
		{"wrong message type", func(string) {}},
		{"wrong callback types", func(*message.Message, int, int) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Adapt(tt.handler)
			require.Error(t, err)
			assert.True(t, semerrors.IsInvalid(err))
			assert.ErrorIs(t, err, semerrors.ErrInvalidHandler)
		})
	}
}
