package component

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/metric"
)

// Input limits for node ids and per-node configuration
const (
	MaxNameLength = 256         // Maximum length for node ids and kind names
	MaxConfigSize = 1024 * 1024 // Maximum raw node config size (1MB)
)

// Dependencies are handed to a factory when a node instance is built
type Dependencies struct {
	// Context lives as long as the node instance and is cancelled when it is
	// undeployed. Create defaults it to context.Background.
	Context         context.Context
	NodeID          string
	Logger          *slog.Logger
	Emitter         Emitter                 // Shared send/report surface for the node instance
	MetricsRegistry *metric.MetricsRegistry // Optional; nil disables node metrics
}

// Factory builds a handler for one node instance from its raw JSON config.
// The returned handler may have any shape Adapt accepts.
type Factory func(rawConfig json.RawMessage, deps Dependencies) (any, error)

// Registration holds a factory and metadata for a node kind
type Registration struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     string    `json:"version"`
	Signature   Signature `json:"signature"` // Shape the factory produces
	Factory     Factory   `json:"-"`
}

// Registry maps node kind names to factories. Safe for concurrent use.
type Registry struct {
	factories map[string]*Registration
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]*Registration)}
}

// RegisterFactory registers a node kind. Duplicate names are rejected.
func (r *Registry) RegisterFactory(registration *Registration) error {
	if registration == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "registration validation")
	}
	if err := ValidateName(registration.Name); err != nil {
		return errors.Wrap(err, "Registry", "RegisterFactory", "kind name validation")
	}
	if registration.Factory == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Registry", "RegisterFactory", "factory function validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[registration.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("node kind %q is already registered", registration.Name),
			"Registry", "RegisterFactory", "duplicate kind check")
	}
	r.factories[registration.Name] = registration
	return nil
}

// Create builds and adapts a handler of the given kind
func (r *Registry) Create(kind string, rawConfig json.RawMessage, deps Dependencies) (*Adapter, error) {
	if err := ValidateName(deps.NodeID); err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", "node id validation")
	}
	if len(rawConfig) > MaxConfigSize {
		return nil, errors.WrapInvalid(
			fmt.Errorf("config size %d exceeds maximum %d", len(rawConfig), MaxConfigSize),
			"Registry", "Create", "config size check")
	}

	r.mu.RLock()
	registration, exists := r.factories[kind]
	r.mu.RUnlock()
	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown node kind %q", kind), "Registry", "Create", "kind lookup")
	}

	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("node", deps.NodeID, "kind", kind)

	handler, err := registration.Factory(rawConfig, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", "factory execution")
	}
	adapter, err := Adapt(handler)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", "handler adaptation")
	}
	if adapter.Signature() != registration.Signature {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: kind %q declares %s but built a %s handler",
				errors.ErrInvalidHandler, kind, registration.Signature, adapter.Signature()),
			"Registry", "Create", "signature check")
	}
	return adapter, nil
}

// Lookup returns a copy of the registration for kind, without its factory
func (r *Registry) Lookup(kind string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	registration, exists := r.factories[kind]
	if !exists {
		return Registration{}, false
	}
	info := *registration
	info.Factory = nil
	return info, true
}

// ListKinds returns the registered kind names in sorted order
func (r *Registry) ListKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateName checks node ids and kind names: non-empty, bounded, and
// limited to alphanumerics, dash, underscore and dot so they are safe as
// subject tokens.
func ValidateName(name string) error {
	if name == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "component", "ValidateName", "empty name")
	}
	if len(name) > MaxNameLength {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "component", "ValidateName", "name too long")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.') {
			return errors.WrapInvalid(
				fmt.Errorf("%w: invalid character %q in %q", errors.ErrInvalidConfig, r, name),
				"component", "ValidateName", "name character check")
		}
	}
	return nil
}
