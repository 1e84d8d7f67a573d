package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/correlation"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/invocation"
	"github.com/c360/semflow/message"
)

// Invoke delivers msg to nodeID and runs its handler synchronously. The
// returned context may still be open when the handler is Modern. Handler
// failures are routed to the catch path, not returned.
func (s *Scheduler) Invoke(nodeID string, msg *message.Message) (*invocation.Context, error) {
	n := s.lookup(nodeID)
	if n == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrNodeNotFound, nodeID), "Scheduler", "Invoke", "node lookup")
	}
	if msg == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Scheduler", "Invoke", "nil message")
	}
	s.tracker.AssignIdentity(msg)

	ctx, err := invocation.New(invocation.Config{
		ID:               s.tracker.NewID(),
		NodeID:           n.id,
		Message:          msg,
		Tracker:          s.tracker,
		Forwarder:        s.forwarder,
		Clock:            s.clock,
		Logger:           s.logger,
		OnFinalize:       s.finalized,
		OnDoubleFinalize: func(invocation.Outcome, error) { s.metrics.RecordDoubleFinalize(n.id) },
		OnSend: func(rec correlation.SendRecord, _ error) {
			s.metrics.RecordSend(n.id, string(rec.Correlation))
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "Scheduler", "Invoke", "open context")
	}

	s.track(ctx, n.timeout)
	s.metrics.RecordContextOpened(n.id, n.adapter.Signature().String())

	n.push(ctx)
	callErr := s.call(n, ctx)
	n.pop(ctx)

	if callErr != nil {
		ctx.Fail(callErr)
	}
	if n.adapter.Signature() == component.Legacy {
		ctx.Infer()
	}
	return ctx, nil
}

// call runs the handler, converting a panic into an error
func (s *Scheduler) call(n *node, ctx *invocation.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r)
			s.logger.Error("Handler panicked", "node", n.id, "context", ctx.ID(), "panic", r)
		}
	}()

	if n.adapter.Signature() == component.Modern {
		return n.adapter.Invoke(ctx.Message(), ctx.Send, ctx.Done)
	}
	return n.adapter.Invoke(ctx.Message(), nil, nil)
}

func (s *Scheduler) track(ctx *invocation.Context, timeout time.Duration) {
	entry := &openContext{ctx: ctx}

	s.mu.Lock()
	s.open[ctx.ID()] = entry
	if timeout > 0 {
		entry.timer = time.AfterFunc(timeout, func() {
			if ctx.ForceFinalize(errors.ErrTimeout) {
				s.logger.Warn("Context timed out", "node", ctx.NodeID(), "context", ctx.ID(), "timeout", timeout)
			}
		})
	}
	s.mu.Unlock()
}

// finalized is the OnFinalize hook shared by every context
func (s *Scheduler) finalized(ev invocation.CompletionEvent) {
	s.mu.Lock()
	if entry, ok := s.open[ev.ContextID]; ok {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		delete(s.open, ev.ContextID)
	}
	dispatcher := s.dispatcher
	s.mu.Unlock()

	s.metrics.RecordContextFinalized(ev.NodeID, string(ev.Outcome), ev.Duration())
	if ev.Failed() {
		s.logger.Debug("Context finalized with error",
			"node", ev.NodeID, "context", ev.ContextID, "outcome", ev.Outcome, "error", ev.Err)
	}

	if dispatcher != nil {
		s.serialize(func() { dispatcher.Completed(ev) })
	}
}

// ForceFinalize is the timeout governor hook. It finalizes an open context
// with err, defaulting to ErrTimeout.
func (s *Scheduler) ForceFinalize(contextID string, err error) error {
	s.mu.RLock()
	entry, ok := s.open[contextID]
	s.mu.RUnlock()
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrContextNotFound, contextID), "Scheduler", "ForceFinalize", "context lookup")
	}
	if !entry.ctx.ForceFinalize(err) {
		return errors.WrapInvalid(errors.ErrAlreadyFinalized, "Scheduler", "ForceFinalize", "finalize context")
	}
	return nil
}

// ContextInfo describes an open context
type ContextInfo struct {
	ID        string    `json:"id"`
	NodeID    string    `json:"node_id"`
	MessageID string    `json:"message_id"`
	Created   time.Time `json:"created"`
	Sends     int       `json:"sends"`
}

// Open lists the contexts that have not finalized, oldest first
func (s *Scheduler) Open() []ContextInfo {
	s.mu.RLock()
	infos := make([]ContextInfo, 0, len(s.open))
	for _, entry := range s.open {
		infos = append(infos, ContextInfo{
			ID:        entry.ctx.ID(),
			NodeID:    entry.ctx.NodeID(),
			MessageID: entry.ctx.OriginID(),
			Created:   entry.ctx.Created(),
			Sends:     len(entry.ctx.Sends()),
		})
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Created.Equal(infos[j].Created) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Created.Before(infos[j].Created)
	})
	return infos
}

func (n *node) push(ctx *invocation.Context) {
	n.stackMu.Lock()
	n.stack = append(n.stack, ctx)
	n.stackMu.Unlock()
}

// pop removes ctx, normally the top entry
func (n *node) pop(ctx *invocation.Context) {
	n.stackMu.Lock()
	defer n.stackMu.Unlock()
	for i := len(n.stack) - 1; i >= 0; i-- {
		if n.stack[i] == ctx {
			n.stack = append(n.stack[:i], n.stack[i+1:]...)
			return
		}
	}
}

func (n *node) top() *invocation.Context {
	n.stackMu.Lock()
	defer n.stackMu.Unlock()
	if len(n.stack) == 0 {
		return nil
	}
	return n.stack[len(n.stack)-1]
}

// openFor returns the innermost open context on the stack for messageID
func (n *node) openFor(messageID string) *invocation.Context {
	n.stackMu.Lock()
	defer n.stackMu.Unlock()
	for i := len(n.stack) - 1; i >= 0; i-- {
		if c := n.stack[i]; c.OriginID() == messageID && c.IsOpen() {
			return c
		}
	}
	return nil
}
