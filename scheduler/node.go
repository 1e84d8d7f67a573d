package scheduler

import (
	"github.com/c360/semflow/component"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
)

// Node is the shared, per-node-instance handle legacy handlers use to send
// and report. It resolves the node on every call, so it may be obtained
// before the node is registered.
type Node struct {
	s  *Scheduler
	id string
}

var _ component.Emitter = (*Node)(nil)

// Node returns the shared handle for nodeID
func (s *Scheduler) Node(nodeID string) *Node {
	return &Node{s: s, id: nodeID}
}

// ID returns the node id
func (h *Node) ID() string {
	return h.id
}

// Send forwards msg, attributing it to the node's innermost active context.
// With no active context the send is forwarded and recorded as uncorrelated.
func (h *Node) Send(msg *message.Message) {
	if msg == nil {
		h.s.logger.Warn("Send called with nil message", "node", h.id)
		return
	}

	if n := h.s.lookup(h.id); n != nil {
		if ctx := n.top(); ctx != nil {
			ctx.SendShared(msg)
			return
		}
	}

	rec := h.s.tracker.RecordUncorrelated(h.id, msg)
	h.s.metrics.RecordSend(h.id, string(rec.Correlation))
	h.s.logger.Debug("Uncorrelated send", "node", h.id, "message_id", rec.MessageID)
	if err := h.s.forwarder.Forward(h.id, msg); err != nil {
		h.s.logger.Error("Failed to forward message", "node", h.id, "message_id", rec.MessageID, "error", err)
	}
}

// Report raises err for msg. When msg belongs to an open context on the
// node's active stack, that context is finalized with err exactly as done(err)
// would. Otherwise the error goes straight to the catch path.
func (h *Node) Report(err error, msg *message.Message) {
	if err == nil {
		return
	}
	if msg == nil {
		msg = message.New()
	}
	h.s.tracker.AssignIdentity(msg)

	if n := h.s.lookup(h.id); n != nil {
		if ctx := n.openFor(msg.ID()); ctx != nil {
			ctx.Done(err)
			return
		}
	}

	dispatcher := h.s.currentDispatcher()
	if dispatcher == nil {
		h.s.logger.Error("Error reported with no dispatcher", "node", h.id, "message_id", msg.ID(), "error", err)
		return
	}
	lerr := errors.NewLifecycle(errors.KindDoneError, h.id, "", err)
	h.s.serialize(func() { dispatcher.Raise(h.id, lerr, msg) })
}
