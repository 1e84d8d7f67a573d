// Package passthrough provides the "passthrough" node kind, which forwards
// every message unchanged and completes.
package passthrough

import (
	"encoding/json"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
)

// Kind is the registered node kind name.
const Kind = "passthrough"

// Config holds configuration for a passthrough node
type Config struct {
	// Set assigns properties on the message before it is forwarded.
	Set map[string]any `json:"set,omitempty"`
}

// New builds the handler for one passthrough node
func New(rawConfig json.RawMessage, _ component.Dependencies) (component.ModernHandler, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Passthrough", "New", "config unmarshal")
		}
	}
	if _, ok := cfg.Set[message.IDKey]; ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Passthrough", "New", "set cannot assign the message identity")
	}

	return func(msg *message.Message, send component.SendFunc, done component.DoneFunc) {
		for k, v := range cfg.Set {
			msg.Set(k, v)
		}
		send(msg)
		done(nil)
	}, nil
}

// Register registers the passthrough node kind
func Register(registry *component.Registry) error {
	return registry.RegisterFactory(&component.Registration{
		Name:        Kind,
		Description: "Forwards each message and completes",
		Version:     "0.1.0",
		Signature:   component.Modern,
		Factory: func(rawConfig json.RawMessage, deps component.Dependencies) (any, error) {
			return New(rawConfig, deps)
		},
	})
}
