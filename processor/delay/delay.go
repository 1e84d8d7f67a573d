// Package delay provides the "delay" node kind. It holds each message for a
// fixed duration and then forwards it and completes from a timer goroutine,
// so its invocations stay open after the handler returns.
package delay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/config"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
)

// Kind is the registered node kind name.
const Kind = "delay"

// DefaultDelay applies when the node config names none.
const DefaultDelay = time.Second

// New builds the handler for one delay node. Config: {"delay": "250ms"}.
func New(rawConfig json.RawMessage, _ component.Dependencies) (component.ModernHandler, error) {
	cfg, err := config.DecodeNodeConfig(rawConfig)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Delay", "New", "config unmarshal")
	}
	wait := config.GetDuration(cfg, "delay", DefaultDelay)
	if wait < 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: negative delay %s", errors.ErrInvalidConfig, wait),
			"Delay", "New", "delay validation")
	}

	return func(msg *message.Message, send component.SendFunc, done component.DoneFunc) {
		time.AfterFunc(wait, func() {
			send(msg)
			done(nil)
		})
	}, nil
}

// Register registers the delay node kind
func Register(registry *component.Registry) error {
	return registry.RegisterFactory(&component.Registration{
		Name:        Kind,
		Description: "Forwards each message after a fixed delay",
		Version:     "0.1.0",
		Signature:   component.Modern,
		Factory: func(rawConfig json.RawMessage, deps component.Dependencies) (any, error) {
			return New(rawConfig, deps)
		},
	})
}
