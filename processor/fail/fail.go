// Package fail provides the "fail" node kind, which finalizes every
// invocation with an error. Mode selects how the error is raised: "done"
// passes it to done, "return" returns it from the handler and "panic"
// panics with it.
package fail

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/config"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
)

// Kind is the registered node kind name.
const Kind = "fail"

// Modes accepted in the node config.
const (
	ModeDone   = "done"
	ModeReturn = "return"
	ModePanic  = "panic"
)

// New builds the handler for one fail node.
// Config: {"message": "boom", "mode": "done"}.
func New(rawConfig json.RawMessage, _ component.Dependencies) (any, error) {
	cfg, err := config.DecodeNodeConfig(rawConfig)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Fail", "New", "config unmarshal")
	}
	failure := stderrors.New(config.GetString(cfg, "message", "failed"))

	switch mode := config.GetString(cfg, "mode", ModeDone); mode {
	case ModeDone:
		return func(_ *message.Message, _ component.SendFunc, done component.DoneFunc) {
			done(failure)
		}, nil
	case ModeReturn:
		return func(_ *message.Message, _ component.SendFunc, _ component.DoneFunc) error {
			return failure
		}, nil
	case ModePanic:
		return func(_ *message.Message, _ component.SendFunc, _ component.DoneFunc) {
			panic(failure)
		}, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: unknown mode %q", errors.ErrInvalidConfig, mode),
			"Fail", "New", "mode validation")
	}
}

// Register registers the fail node kind
func Register(registry *component.Registry) error {
	return registry.RegisterFactory(&component.Registration{
		Name:        Kind,
		Description: "Finalizes every invocation with a configured error",
		Version:     "0.1.0",
		Signature:   component.Modern,
		Factory:     New,
	})
}
