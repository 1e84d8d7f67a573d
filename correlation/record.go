package correlation

import "time"

// Correlation describes how a send was attributed
type Correlation string

const (
	// Bound sends come through a send capability owned by one context.
	Bound Correlation = "bound"
	// Shared sends come through a node's shared send, resolved via the active-context stack.
	Shared Correlation = "shared"
	// Late sends arrive after their context finalized.
	Late Correlation = "late"
	// Uncorrelated sends had no active context to attach to.
	Uncorrelated Correlation = "uncorrelated"
)

// SendRecord links an outgoing message to the context that emitted it
type SendRecord struct {
	ContextID   string      `json:"context_id,omitempty"`
	NodeID      string      `json:"node_id"`
	OriginID    string      `json:"origin_id"`
	MessageID   string      `json:"message_id"`
	Sequence    uint64      `json:"sequence"`
	Correlation Correlation `json:"correlation"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Late reports whether the record was made after its context finalized
func (r SendRecord) Late() bool {
	return r.Correlation == Late
}

// Ref is the view of an invocation context the tracker needs.
// NextSequence must be safe for concurrent use.
type Ref interface {
	ID() string
	NodeID() string
	OriginID() string
	NextSequence() uint64
}
