// Package logger provides the "log" node kind: a single-parameter handler that
// writes each message to the structured log and, when configured, forwards
// it through the node's shared emitter.
//
// Being single-parameter, a log node never calls done itself; its
// invocations complete when the handler returns.
package logger

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/config"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
)

// Kind is the registered node kind name.
const Kind = "log"

// New builds the handler for one log node.
// Config: {"level": "info", "forward": true, "properties": ["topic"]}.
func New(rawConfig json.RawMessage, deps component.Dependencies) (component.LegacyHandler, error) {
	cfg, err := config.DecodeNodeConfig(rawConfig)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Logger", "New", "config unmarshal")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(config.GetString(cfg, "level", "info")))); err != nil {
		return nil, errors.WrapInvalid(err, "Logger", "New", "level parse")
	}
	forward := config.GetBool(cfg, "forward", false)
	if forward && deps.Emitter == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Logger", "New", "forward requires an emitter")
	}

	var only []string
	if raw, ok := cfg["properties"].([]any); ok {
		for _, p := range raw {
			if s, ok := p.(string); ok {
				only = append(only, s)
			}
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(msg *message.Message) {
		attrs := []any{"message_id", msg.ID()}
		if len(only) == 0 {
			attrs = append(attrs, "properties", msg.Keys())
		}
		for _, key := range only {
			if v, ok := msg.Get(key); ok {
				attrs = append(attrs, key, v)
			}
		}
		logger.Log(context.Background(), level, "Received message", attrs...)

		if forward {
			deps.Emitter.Send(msg)
		}
	}, nil
}

// Register registers the log node kind
func Register(registry *component.Registry) error {
	return registry.RegisterFactory(&component.Registration{
		Name:        Kind,
		Description: "Logs each message and optionally forwards it",
		Version:     "0.1.0",
		Signature:   component.Legacy,
		Factory: func(rawConfig json.RawMessage, deps component.Dependencies) (any, error) {
			return New(rawConfig, deps)
		},
	})
}
