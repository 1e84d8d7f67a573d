// Package file provides the "file" node kind, which appends each message to
// a file and, when configured, forwards it through the node's shared emitter.
//
// The handler takes only the message and returns an error, so a failed write
// finalizes the invocation with that error and reaches Catch observers.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
)

// Kind is the registered node kind name.
const Kind = "file"

// Output formats.
const (
	FormatJSONL   = "jsonl"   // one message per line
	FormatPayload = "payload" // the payload property only, one per line
)

// Config holds configuration for a file node
type Config struct {
	Directory  string `json:"directory"`
	FilePrefix string `json:"file_prefix,omitempty"` // defaults to the node id
	Format     string `json:"format,omitempty"`
	Append     *bool  `json:"append,omitempty"` // false truncates when the node is deployed
	Forward    bool   `json:"forward,omitempty"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Directory == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "directory is required")
	}
	switch c.Format {
	case FormatJSONL, FormatPayload:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"format must be one of: jsonl, payload")
	}
	return nil
}

// Output appends messages for one node instance
type Output struct {
	path    string
	format  string
	forward bool
	emitter component.Emitter

	mu sync.Mutex
}

// New builds a file node from its raw config
func New(rawConfig json.RawMessage, deps component.Dependencies) (*Output, error) {
	cfg := Config{Format: FormatJSONL}
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Output", "New", "config unmarshal")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Forward && deps.Emitter == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Output", "New", "forward requires an emitter")
	}

	prefix := cfg.FilePrefix
	if prefix == "" {
		prefix = deps.NodeID
	}
	if prefix == "" || filepath.Base(prefix) != prefix {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: invalid file prefix %q", errors.ErrInvalidConfig, prefix),
			"Output", "New", "file prefix validation")
	}

	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, errors.WrapFatal(err, "Output", "New", "create output directory")
	}
	path := filepath.Join(cfg.Directory, prefix+".jsonl")
	if cfg.Append != nil && !*cfg.Append {
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return nil, errors.WrapFatal(err, "Output", "New", "truncate output file")
		}
	}

	return &Output{
		path:    path,
		format:  cfg.Format,
		forward: cfg.Forward,
		emitter: deps.Emitter,
	}, nil
}

// Path returns the file messages are written to
func (o *Output) Path() string {
	return o.path
}

// Write appends msg as one line
func (o *Output) Write(msg *message.Message) error {
	var (
		line []byte
		err  error
	)
	if o.format == FormatPayload {
		line, err = json.Marshal(msg.Payload())
	} else {
		line, err = json.Marshal(msg)
	}
	if err != nil {
		return errors.WrapInvalid(err, "Output", "Write", "encode message")
	}
	line = append(line, '\n')

	if err := o.append(line); err != nil {
		return errors.WrapTransient(err, "Output", "Write", "append to "+o.path)
	}
	if o.forward {
		o.emitter.Send(msg)
	}
	return nil
}

func (o *Output) append(line []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Register registers the file node kind
func Register(registry *component.Registry) error {
	return registry.RegisterFactory(&component.Registration{
		Name:        Kind,
		Description: "Appends each message to a file",
		Version:     "0.1.0",
		Signature:   component.Legacy,
		Factory: func(rawConfig json.RawMessage, deps component.Dependencies) (any, error) {
			o, err := New(rawConfig, deps)
			if err != nil {
				return nil, err
			}
			return o.Write, nil
		},
	})
}
