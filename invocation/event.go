package invocation

import (
	"time"

	"github.com/c360/semflow/message"
)

// State of an invocation context
type State int

const (
	// Open contexts are still in flight.
	Open State = iota
	// FinalizedSuccess is terminal and carries no error.
	FinalizedSuccess
	// FinalizedError is terminal and carries an error.
	FinalizedError
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case FinalizedSuccess:
		return "finalized_success"
	case FinalizedError:
		return "finalized_error"
	default:
		return "open"
	}
}

// Outcome says how a context was finalized
type Outcome string

// Outcomes
const (
	OutcomeSuccess  Outcome = "success"
	OutcomeInferred Outcome = "inferred"
	OutcomeError    Outcome = "error"
	OutcomeTimeout  Outcome = "timeout"
)

// CompletionEvent is emitted exactly once per context at finalize time
type CompletionEvent struct {
	ContextID string
	NodeID    string
	MessageID string           // originating message identity
	Message   *message.Message // inbound message as the handler left it
	Err       error            // nil on success
	Outcome   Outcome
	Created   time.Time
	Timestamp time.Time
}

// Failed reports whether the event routes to the catch path
func (e CompletionEvent) Failed() bool {
	return e.Err != nil
}

// Duration is the time the context spent open
func (e CompletionEvent) Duration() time.Duration {
	return e.Timestamp.Sub(e.Created)
}
