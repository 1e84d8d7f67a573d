// Package observer provides the "complete" and "catch" node kinds. Both log
// the lifecycle record the dispatcher attached to the message and forward the
// message downstream, so completion and error events can be published like
// any other node output.
package observer

import (
	"encoding/json"
	"log/slog"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/dispatch"
	"github.com/c360/semflow/message"
)

// Registered node kind names.
const (
	CompleteKind = "complete"
	CatchKind    = "catch"
)

// NewComplete builds the handler for a complete observer
func NewComplete(_ json.RawMessage, deps component.Dependencies) (component.ModernHandler, error) {
	logger := loggerOf(deps)
	return func(msg *message.Message, send component.SendFunc, done component.DoneFunc) {
		source := sourceOf(msg, dispatch.CompleteKey)
		logger.Info("Observed completion",
			"message_id", msg.ID(),
			"source", source["id"],
			"source_context", source["context"])
		send(msg)
		done(nil)
	}, nil
}

// NewCatch builds the handler for a catch observer
func NewCatch(_ json.RawMessage, deps component.Dependencies) (component.ModernHandler, error) {
	logger := loggerOf(deps)
	return func(msg *message.Message, send component.SendFunc, done component.DoneFunc) {
		record, _ := lookupMap(msg, dispatch.ErrorKey)
		source := sourceOf(msg, dispatch.ErrorKey)
		logger.Warn("Caught error",
			"message_id", msg.ID(),
			"source", source["id"],
			"error", record["message"],
			"count", record["count"])
		send(msg)
		done(nil)
	}, nil
}

func loggerOf(deps component.Dependencies) *slog.Logger {
	if deps.Logger != nil {
		return deps.Logger
	}
	return slog.Default()
}

func sourceOf(msg *message.Message, key string) map[string]any {
	record, _ := lookupMap(msg, key)
	source, _ := record["source"].(map[string]any)
	if source == nil {
		return map[string]any{}
	}
	return source
}

func lookupMap(msg *message.Message, key string) (map[string]any, bool) {
	v, ok := msg.Get(key)
	if !ok {
		return map[string]any{}, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, false
	}
	return m, true
}

// Register registers both observer kinds
func Register(registry *component.Registry) error {
	if err := registry.RegisterFactory(&component.Registration{
		Name:        CompleteKind,
		Description: "Logs and forwards completion events of observed nodes",
		Version:     "0.1.0",
		Signature:   component.Modern,
		Factory: func(rawConfig json.RawMessage, deps component.Dependencies) (any, error) {
			return NewComplete(rawConfig, deps)
		},
	}); err != nil {
		return err
	}
	return registry.RegisterFactory(&component.Registration{
		Name:        CatchKind,
		Description: "Logs and forwards errors raised by observed nodes",
		Version:     "0.1.0",
		Signature:   component.Modern,
		Factory: func(rawConfig json.RawMessage, deps component.Dependencies) (any, error) {
			return NewCatch(rawConfig, deps)
		},
	})
}
