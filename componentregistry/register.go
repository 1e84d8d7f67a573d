// Package componentregistry registers the built-in node kinds with a
// component registry.
package componentregistry

import (
	"errors"

	"github.com/c360/semflow/component"
	pkgerrors "github.com/c360/semflow/errors"
	"github.com/c360/semflow/output/file"
	"github.com/c360/semflow/output/httppost"
	"github.com/c360/semflow/output/logger"
	"github.com/c360/semflow/output/observer"
	"github.com/c360/semflow/processor/delay"
	"github.com/c360/semflow/processor/fail"
	"github.com/c360/semflow/processor/filter"
	"github.com/c360/semflow/processor/passthrough"
)

// Register registers every built-in node kind with the provided registry:
//
// Processors (three-parameter handlers):
//   - passthrough: forwards each message and completes
//   - filter: forwards messages matching field rules
//   - delay: forwards after a fixed delay, completing asynchronously
//   - fail: finalizes with a configured error
//
// Outputs:
//   - log: single-parameter handler that logs and optionally forwards
//   - file: single-parameter handler appending messages to a file
//   - http-post: posts messages, completing when the endpoint answers
//   - complete, catch: observers of completion and error events
func Register(registry *component.Registry) error {
	// Nil registry is a programming error (fatal), not invalid input
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"ComponentRegistry", "Register", "registry validation")
	}

	if err := passthrough.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "passthrough node registration")
	}
	if err := filter.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "filter node registration")
	}
	if err := delay.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "delay node registration")
	}
	if err := fail.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "fail node registration")
	}
	if err := logger.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "log node registration")
	}
	if err := file.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "file node registration")
	}
	if err := httppost.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "http-post node registration")
	}
	if err := observer.Register(registry); err != nil {
		return pkgerrors.WrapInvalid(err, "ComponentRegistry", "Register", "observer node registration")
	}

	return nil
}
