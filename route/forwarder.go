package route

import (
	"github.com/c360/semflow/message"
)

// Forwarder delivers a message sent by node from downstream
type Forwarder interface {
	Forward(from string, msg *message.Message) error
}

// Func adapts a function to Forwarder
type Func func(from string, msg *message.Message) error

// Forward calls f
func (f Func) Forward(from string, msg *message.Message) error {
	return f(from, msg)
}

// Discard drops every message
var Discard Forwarder = Func(func(string, *message.Message) error { return nil })
