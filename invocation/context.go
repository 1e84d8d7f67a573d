package invocation

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/semflow/correlation"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
	"github.com/c360/semflow/route"
)

// Config carries everything a Context needs. Tracker and Forwarder are required.
type Config struct {
	ID        string
	NodeID    string
	Message   *message.Message
	Tracker   *correlation.Tracker
	Forwarder route.Forwarder
	Clock     func() time.Time
	Logger    *slog.Logger

	// OnFinalize receives the single CompletionEvent, synchronously.
	OnFinalize func(CompletionEvent)
	// OnDoubleFinalize is told about every discarded finalize attempt.
	OnDoubleFinalize func(attempted Outcome, err error)
	// OnSend is told about every send after it was forwarded.
	OnSend func(rec correlation.SendRecord, forwardErr error)
}

// Context is the tracked record of one node's handling of one inbound message
type Context struct {
	id       string
	nodeID   string
	originID string
	msg      *message.Message
	created  time.Time

	now       func() time.Time
	logger    *slog.Logger
	tracker   *correlation.Tracker
	forwarder route.Forwarder

	onFinalize       func(CompletionEvent)
	onDoubleFinalize func(Outcome, error)
	onSend           func(correlation.SendRecord, error)

	seq atomic.Uint64

	mu          sync.Mutex
	state       State
	outcome     Outcome
	err         error
	finalizedAt time.Time
	sends       []correlation.SendRecord
}

// New creates an Open context. The message must already carry its identity.
func New(cfg Config) (*Context, error) {
	if cfg.Tracker == nil || cfg.Forwarder == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "invocation", "New", "tracker and forwarder required")
	}
	if cfg.Message == nil || !cfg.Message.HasID() {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "invocation", "New", "message identity required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ID == "" {
		cfg.ID = cfg.Tracker.NewID()
	}

	return &Context{
		id:               cfg.ID,
		nodeID:           cfg.NodeID,
		originID:         cfg.Message.ID(),
		msg:              cfg.Message,
		created:          cfg.Clock(),
		now:              cfg.Clock,
		logger:           cfg.Logger.With("node", cfg.NodeID, "context", cfg.ID, "message_id", cfg.Message.ID()),
		tracker:          cfg.Tracker,
		forwarder:        cfg.Forwarder,
		onFinalize:       cfg.OnFinalize,
		onDoubleFinalize: cfg.OnDoubleFinalize,
		onSend:           cfg.OnSend,
	}, nil
}

// ID returns the context id
func (c *Context) ID() string { return c.id }

// NodeID returns the owning node id
func (c *Context) NodeID() string { return c.nodeID }

// OriginID returns the originating message identity
func (c *Context) OriginID() string { return c.originID }

// Message returns the inbound message
func (c *Context) Message() *message.Message { return c.msg }

// Created returns the creation timestamp
func (c *Context) Created() time.Time { return c.created }

// NextSequence returns the next send sequence number, starting at 1
func (c *Context) NextSequence() uint64 {
	return c.seq.Add(1)
}

// State returns the current state
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsOpen reports whether the context has not been finalized
func (c *Context) IsOpen() bool {
	return c.State() == Open
}

// Err returns the finalize error, if any
func (c *Context) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Outcome returns how the context was finalized, or "" while open
func (c *Context) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// FinalizedAt returns the finalize timestamp, zero while open
func (c *Context) FinalizedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalizedAt
}

// Sends returns a copy of the send records made through this context
func (c *Context) Sends() []correlation.SendRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]correlation.SendRecord, len(c.sends))
	copy(out, c.sends)
	return out
}

// Send is the bound send capability handed to Modern handlers
func (c *Context) Send(out *message.Message) {
	c.emit(out, correlation.Bound)
}

// SendShared records a send made through a node's shared capability that was
// attributed to this context via the active-context stack.
func (c *Context) SendShared(out *message.Message) {
	c.emit(out, correlation.Shared)
}

func (c *Context) emit(out *message.Message, corr correlation.Correlation) {
	if out == nil {
		c.logger.Warn("Send called with nil message")
		return
	}

	c.mu.Lock()
	state, outcome := c.state, c.outcome
	c.mu.Unlock()

	// A force-finalized context is closed to the handler entirely.
	if outcome == OutcomeTimeout {
		c.logger.Warn("Send after context was force-finalized, dropping", "error", c.Err())
		return
	}

	late := state != Open
	if late {
		corr = correlation.Late
	}

	rec := c.tracker.RecordSend(c, out, corr)

	c.mu.Lock()
	c.sends = append(c.sends, rec)
	c.mu.Unlock()

	if late {
		c.logger.Warn("Send after context finalized, forwarding anyway", "sequence", rec.Sequence)
	}

	err := c.forwarder.Forward(c.nodeID, out)
	if err != nil {
		c.logger.Error("Failed to forward message", "sequence", rec.Sequence, "error", err)
	}
	if c.onSend != nil {
		c.onSend(rec, err)
	}
}

// Done is the bound done capability. A nil error finalizes with success.
func (c *Context) Done(err error) {
	if err == nil {
		c.finalize(OutcomeSuccess, nil)
		return
	}
	c.finalize(OutcomeError, errors.NewLifecycle(errors.KindDoneError, c.nodeID, c.id, err))
}

// Fail finalizes with an error that escaped the handler body, as a panic or
// a returned error. It is equivalent to Done(err).
func (c *Context) Fail(err error) bool {
	if err == nil {
		err = fmt.Errorf("handler failed without an error value")
	}
	return c.finalize(OutcomeError, errors.NewLifecycle(errors.KindHandlerThrow, c.nodeID, c.id, err))
}

// Infer finalizes a still-open context as an inferred success. It does nothing
// when the context is already finalized.
func (c *Context) Infer() bool {
	return c.transition(OutcomeInferred, nil, true)
}

// ForceFinalize is the timeout governor hook. It finalizes an open context
// with err and reports whether it did.
func (c *Context) ForceFinalize(err error) bool {
	if err == nil {
		err = errors.ErrTimeout
	}
	return c.finalize(OutcomeTimeout, errors.NewLifecycle(errors.KindTimeout, c.nodeID, c.id, err))
}

func (c *Context) finalize(outcome Outcome, err error) bool {
	return c.transition(outcome, err, false)
}

// transition performs the single Open -> Finalized step. quiet suppresses the
// double-finalize diagnostic for conditional attempts.
func (c *Context) transition(outcome Outcome, err error, quiet bool) bool {
	c.mu.Lock()
	if c.state != Open {
		state := c.state
		c.mu.Unlock()
		if quiet {
			return false
		}

		c.logger.Warn("Context already finalized, ignoring",
			"state", state.String(), "attempted", string(outcome), "error", err)
		if c.onDoubleFinalize != nil {
			c.onDoubleFinalize(outcome, err)
		}
		return false
	}

	c.state = FinalizedSuccess
	if err != nil {
		c.state = FinalizedError
	}
	c.outcome = outcome
	c.err = err
	c.finalizedAt = c.now()

	event := CompletionEvent{
		ContextID: c.id,
		NodeID:    c.nodeID,
		MessageID: c.originID,
		Message:   c.msg,
		Err:       err,
		Outcome:   outcome,
		Created:   c.created,
		Timestamp: c.finalizedAt,
	}
	c.mu.Unlock()

	if c.onFinalize != nil {
		c.onFinalize(event)
	}
	return true
}
