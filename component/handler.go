package component

import (
	"github.com/c360/semflow/message"
)

// SendFunc emits a message downstream on behalf of one invocation
type SendFunc func(msg *message.Message)

// DoneFunc finalizes one invocation. A nil error means success.
type DoneFunc func(err error)

// LegacyHandler is the single-parameter handler shape
type LegacyHandler func(msg *message.Message)

// ModernHandler is the three-parameter handler shape
type ModernHandler func(msg *message.Message, send SendFunc, done DoneFunc)

// Emitter is the shared, per-node send surface available to legacy handlers
type Emitter interface {
	// Send forwards msg, correlating it with the node's active invocation if any.
	Send(msg *message.Message)
	// Report raises err for msg through the catch path.
	Report(err error, msg *message.Message)
}
