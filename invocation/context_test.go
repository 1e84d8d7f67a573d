package invocation

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semflow/correlation"
	semerrors "github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
	"github.com/c360/semflow/testutil"
)

type harness struct {
	clock    *testutil.Clock
	recorder *testutil.Recorder
	tracker  *correlation.Tracker

	mu      sync.Mutex
	events  []CompletionEvent
	doubles []Outcome
	sends   []correlation.SendRecord
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: testutil.NewClock(), recorder: testutil.NewRecorder()}
	tr, err := correlation.NewTracker(
		correlation.WithIDGenerator(testutil.SequentialIDs("id")),
		correlation.WithClock(h.clock.Now),
	)
	require.NoError(t, err)
	h.tracker = tr
	return h
}

func (h *harness) newContext(t *testing.T) *Context {
	t.Helper()
	msg := testutil.NewMessage("payload", "")
	h.tracker.AssignIdentity(msg)

	ctx, err := New(Config{
		ID:        "ctx-1",
		NodeID:    "node",
		Message:   msg,
		Tracker:   h.tracker,
		Forwarder: h.recorder,
		Clock:     h.clock.Now,
		OnFinalize: func(ev CompletionEvent) {
			h.mu.Lock()
			h.events = append(h.events, ev)
			h.mu.Unlock()
		},
		OnDoubleFinalize: func(o Outcome, _ error) {
			h.mu.Lock()
			h.doubles = append(h.doubles, o)
			h.mu.Unlock()
		},
		OnSend: func(rec correlation.SendRecord, _ error) {
			h.mu.Lock()
			h.sends = append(h.sends, rec)
			h.mu.Unlock()
		},
	})
	require.NoError(t, err)
	return ctx
}

func (h *harness) eventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestNew_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := New(Config{Message: message.New(), Forwarder: h.recorder})
	assert.True(t, semerrors.IsInvalid(err), "tracker required")

	_, err = New(Config{Message: message.New(), Tracker: h.tracker, Forwarder: h.recorder})
	assert.True(t, semerrors.IsInvalid(err), "identity required")
}

func TestContext_DoneSuccess(t *testing.T) {
	h := newHarness(t)
	c := h.newContext(t)
	assert.True(t, c.IsOpen())

	finishAt := h.clock.Advance(250 * time.Millisecond)
	c.Done(nil)

	require.Equal(t, 1, h.eventCount())
	ev := h.events[0]
	assert.Equal(t, "ctx-1", ev.ContextID)
	assert.Equal(t, "node", ev.NodeID)
	assert.Equal(t, c.OriginID(), ev.MessageID)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)
	assert.False(t, ev.Failed())
	assert.Equal(t, finishAt, ev.Timestamp)
	assert.Equal(t, 250*time.Millisecond, ev.Duration())
	assert.Equal(t, FinalizedSuccess, c.State())
}

func TestContext_DoneAtMostOnce(t *testing.T) {
	h := newHarness(t)
	c := h.newContext(t)

	c.Done(nil)
	c.Done(nil)
	c.Done(errors.New("late failure"))
	assert.False(t, c.ForceFinalize(nil))
	assert.False(t, c.Infer(), "inferred completion is conditional and silent")

	assert.Equal(t, 1, h.eventCount())
	assert.Equal(t, []Outcome{OutcomeSuccess, OutcomeError, OutcomeTimeout}, h.doubles)
	assert.Equal(t, FinalizedSuccess, c.State())
	assert.NoError(t, c.Err())
}

func TestContext_ConcurrentDone(t *testing.T) {
	h := newHarness(t)
	c := h.newContext(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				c.Done(nil)
			} else {
				c.Done(errors.New("boom"))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, h.eventCount())
	assert.Len(t, h.doubles, 31)
}

func TestContext_ErrorKinds(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		finalize func(*Context)
		kind     semerrors.Kind
		outcome  Outcome
		state    State
	}{
		{"done error", func(c *Context) { c.Done(boom) }, semerrors.KindDoneError, OutcomeError, FinalizedError},
		{"handler throw", func(c *Context) { c.Fail(boom) }, semerrors.KindHandlerThrow, OutcomeError, FinalizedError},
		{"timeout", func(c *Context) { c.ForceFinalize(boom) }, semerrors.KindTimeout, OutcomeTimeout, FinalizedError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			c := h.newContext(t)
			tt.finalize(c)

			require.Equal(t, 1, h.eventCount())
			ev := h.events[0]
			assert.True(t, ev.Failed())
			assert.Equal(t, tt.outcome, ev.Outcome)
			assert.Equal(t, tt.state, c.State())
			assert.Equal(t, tt.kind, semerrors.KindOf(ev.Err))
			assert.ErrorIs(t, ev.Err, boom)
			assert.Equal(t, "boom", ev.Err.Error(), "kind does not leak into the error text")
		})
	}
}

func TestContext_ForceFinalizeDefaultsToTimeout(t *testing.T) {
	h := newHarness(t)
	c := h.newContext(t)

	assert.True(t, c.ForceFinalize(nil))
	assert.ErrorIs(t, c.Err(), semerrors.ErrTimeout)
}

func TestContext_Infer(t *testing.T) {
	h := newHarness(t)
	c := h.newContext(t)

	assert.True(t, c.Infer())
	assert.Equal(t, OutcomeInferred, c.Outcome())
	assert.Equal(t, FinalizedSuccess, c.State())
	assert.Empty(t, h.doubles)
}

func TestContext_SendSequencesAndForwards(t *testing.T) {
	h := newHarness(t)
	c := h.newContext(t)

	c.Send(c.Message().Clone())
	c.SendShared(message.NewWithPayload("derived"))

	sends := c.Sends()
	require.Len(t, sends, 2)
	assert.Equal(t, uint64(1), sends[0].Sequence)
	assert.Equal(t, uint64(2), sends[1].Sequence)
	assert.Equal(t, correlation.Bound, sends[0].Correlation)
	assert.Equal(t, correlation.Shared, sends[1].Correlation)
	for _, s := range sends {
		assert.Equal(t, c.OriginID(), s.OriginID)
	}

	forwarded := h.recorder.From("node")
	require.Len(t, forwarded, 2)
	assert.Equal(t, c.OriginID(), forwarded[1].ID(), "fresh message inherits the origin identity")
	assert.True(t, c.IsOpen(), "send does not finalize")
}

func TestContext_LateSendIsForwardedButDoesNotRevive(t *testing.T) {
	h := newHarness(t)
	c := h.newContext(t)

	c.Done(nil)
	c.Send(message.NewWithPayload("stray"))

	assert.Equal(t, 1, h.recorder.Count())
	sends := c.Sends()
	require.Len(t, sends, 1)
	assert.True(t, sends[0].Late())
	assert.Equal(t, FinalizedSuccess, c.State())
	assert.Equal(t, 1, h.eventCount())
}

func TestContext_SendAfterForceFinalizeIsDropped(t *testing.T) {
	h := newHarness(t)
	c := h.newContext(t)

	require.True(t, c.ForceFinalize(nil))
	c.Send(message.NewWithPayload("too late"))
	c.SendShared(message.NewWithPayload("too late"))
	c.Done(nil)

	assert.Equal(t, 0, h.recorder.Count())
	assert.Empty(t, c.Sends())
	assert.Empty(t, h.sends)
	assert.Equal(t, OutcomeTimeout, c.Outcome())
	assert.Equal(t, 1, h.eventCount())
}

func TestContext_ForwardErrorIsReportedNotFatal(t *testing.T) {
	h := newHarness(t)
	h.recorder.FailWith(errors.New("downstream unavailable"))
	c := h.newContext(t)

	c.Send(message.New())
	c.Send(nil)

	require.Len(t, h.sends, 1)
	assert.True(t, c.IsOpen())
}
