package config

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode"

	"github.com/nats-io/nats.go"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/errors"
)

// Defaults applied by ApplyDefaults when a section leaves a field unset.
const (
	DefaultNATSPrefix     = "semflow"
	DefaultMetricsPort    = 9090
	DefaultMetricsPath    = "/metrics"
	DefaultForwardWorkers = 4
	DefaultForwardQueue   = 1024
	DefaultSendIndexSize  = 4096
	DefaultMaxCatchHops   = 10
	DefaultRetryAttempts  = 3
)

// Config is the complete runtime configuration of a semflow process.
type Config struct {
	Version   string          `json:"version,omitempty"`
	Log       LogConfig       `json:"log"`
	Metrics   MetricsConfig   `json:"metrics"`
	NATS      NATSConfig      `json:"nats"`
	Runtime   RuntimeConfig   `json:"runtime"`
	Flows     []FlowConfig    `json:"flows,omitempty"`
	Nodes     []NodeConfig    `json:"nodes"`
	Observers ObserverConfigs `json:"observers"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // json or text
}

// MetricsConfig controls the prometheus exposition server.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// NATSConfig holds the connection and subject layout used for ingress and egress.
type NATSConfig struct {
	URL           string      `json:"url,omitempty"`
	Prefix        string      `json:"prefix,omitempty"`
	MaxReconnects int         `json:"max_reconnects,omitempty"`
	ReconnectWait Duration    `json:"reconnect_wait,omitempty"`
	Retry         RetryConfig `json:"retry"`
}

// RetryConfig mirrors retry.Config for publish attempts.
type RetryConfig struct {
	MaxAttempts  int      `json:"max_attempts,omitempty"`
	InitialDelay Duration `json:"initial_delay,omitempty"`
	MaxDelay     Duration `json:"max_delay,omitempty"`
}

// RuntimeConfig tunes the lifecycle core.
type RuntimeConfig struct {
	ForwardWorkers int      `json:"forward_workers,omitempty"`
	ForwardQueue   int      `json:"forward_queue,omitempty"`
	SendIndexSize  int      `json:"send_index_size,omitempty"`
	MaxCatchHops   int      `json:"max_catch_hops,omitempty"`
	NodeTimeout    Duration `json:"node_timeout,omitempty"`
}

// FlowConfig declares a flow and, for subflows, its enclosing flow.
type FlowConfig struct {
	ID     string `json:"id"`
	Parent string `json:"parent,omitempty"`
}

// NodeConfig declares one node instance.
type NodeConfig struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Flow    string          `json:"flow,omitempty"`
	Timeout Duration        `json:"timeout,omitempty"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// ObserverConfigs lists the Complete and Catch registrations.
type ObserverConfigs struct {
	Complete []CompleteConfig `json:"complete,omitempty"`
	Catch    []CatchConfig    `json:"catch,omitempty"`
}

// CompleteConfig subscribes Node to completion events of Targets.
type CompleteConfig struct {
	Node    string   `json:"node"`
	Targets []string `json:"targets"`
}

// CatchConfig subscribes Node to errors in Scope: "nodes", "flow" or "uncaught".
type CatchConfig struct {
	Node    string   `json:"node"`
	Scope   string   `json:"scope"`
	Targets []string `json:"targets,omitempty"`
}

// Catch scope names accepted in configuration.
const (
	CatchScopeNodes    = "nodes"
	CatchScopeFlow     = "flow"
	CatchScopeUncaught = "uncaught"
)

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Enabled && c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.NATS.URL == "" {
		c.NATS.URL = nats.DefaultURL
	}
	if c.NATS.Prefix == "" {
		c.NATS.Prefix = DefaultNATSPrefix
	}
	if c.NATS.MaxReconnects == 0 {
		c.NATS.MaxReconnects = -1
	}
	if c.NATS.ReconnectWait == 0 {
		c.NATS.ReconnectWait = Duration(2 * time.Second)
	}
	if c.NATS.Retry.MaxAttempts == 0 {
		c.NATS.Retry.MaxAttempts = DefaultRetryAttempts
	}
	if c.NATS.Retry.InitialDelay == 0 {
		c.NATS.Retry.InitialDelay = Duration(100 * time.Millisecond)
	}
	if c.NATS.Retry.MaxDelay == 0 {
		c.NATS.Retry.MaxDelay = Duration(5 * time.Second)
	}
	if c.Runtime.ForwardWorkers == 0 {
		c.Runtime.ForwardWorkers = DefaultForwardWorkers
	}
	if c.Runtime.ForwardQueue == 0 {
		c.Runtime.ForwardQueue = DefaultForwardQueue
	}
	if c.Runtime.SendIndexSize == 0 {
		c.Runtime.SendIndexSize = DefaultSendIndexSize
	}
	if c.Runtime.MaxCatchHops == 0 {
		c.Runtime.MaxCatchHops = DefaultMaxCatchHops
	}
}

// Validate checks cross-references the schema cannot express: unique node ids,
// observers naming declared nodes, flows forming no cycle.
func (c *Config) Validate() error {
	if !isValidSubjectPart(c.NATS.Prefix) {
		return invalid(fmt.Sprintf("nats.prefix %q is not valid for NATS subjects", c.NATS.Prefix))
	}

	flows := make(map[string]string, len(c.Flows))
	for _, f := range c.Flows {
		if f.ID == "" {
			return invalid("flow id cannot be empty")
		}
		if _, dup := flows[f.ID]; dup {
			return invalid(fmt.Sprintf("duplicate flow %q", f.ID))
		}
		flows[f.ID] = f.Parent
	}
	for id := range flows {
		if err := checkFlowChain(id, flows); err != nil {
			return err
		}
	}

	nodes := make(map[string]bool, len(c.Nodes))
	for i, n := range c.Nodes {
		if err := component.ValidateName(n.ID); err != nil {
			return invalid(fmt.Sprintf("nodes[%d]: %v", i, err))
		}
		if !isValidSubjectPart(n.ID) {
			return invalid(fmt.Sprintf("node %q is not valid for NATS subjects", n.ID))
		}
		if nodes[n.ID] {
			return invalid(fmt.Sprintf("duplicate node %q", n.ID))
		}
		if n.Kind == "" {
			return invalid(fmt.Sprintf("node %q: kind is required", n.ID))
		}
		if n.Flow != "" {
			if _, ok := flows[n.Flow]; !ok {
				return invalid(fmt.Sprintf("node %q: unknown flow %q", n.ID, n.Flow))
			}
		}
		if n.Timeout < 0 {
			return invalid(fmt.Sprintf("node %q: timeout cannot be negative", n.ID))
		}
		nodes[n.ID] = true
	}

	for _, o := range c.Observers.Complete {
		if !nodes[o.Node] {
			return invalid(fmt.Sprintf("complete observer %q is not a declared node", o.Node))
		}
		if len(o.Targets) == 0 {
			return invalid(fmt.Sprintf("complete observer %q has no targets", o.Node))
		}
		for _, t := range o.Targets {
			if !nodes[t] {
				return invalid(fmt.Sprintf("complete observer %q: unknown target %q", o.Node, t))
			}
		}
	}

	for _, o := range c.Observers.Catch {
		if !nodes[o.Node] {
			return invalid(fmt.Sprintf("catch observer %q is not a declared node", o.Node))
		}
		switch o.Scope {
		case CatchScopeNodes:
			if len(o.Targets) == 0 {
				return invalid(fmt.Sprintf("catch observer %q: nodes scope needs targets", o.Node))
			}
			for _, t := range o.Targets {
				if !nodes[t] {
					return invalid(fmt.Sprintf("catch observer %q: unknown target %q", o.Node, t))
				}
			}
		case CatchScopeFlow, CatchScopeUncaught:
			if len(o.Targets) > 0 {
				return invalid(fmt.Sprintf("catch observer %q: %s scope takes no targets", o.Node, o.Scope))
			}
		default:
			return invalid(fmt.Sprintf("catch observer %q: unknown scope %q", o.Node, o.Scope))
		}
	}

	return nil
}

// Node returns the declaration of id.
func (c *Config) Node(id string) (NodeConfig, bool) {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return NodeConfig{}, false
}

// String returns an indented JSON rendering.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

func checkFlowChain(id string, parents map[string]string) error {
	seen := map[string]bool{id: true}
	for cur := parents[id]; cur != ""; cur = parents[cur] {
		if _, ok := parents[cur]; !ok {
			return invalid(fmt.Sprintf("flow %q: unknown parent %q", id, cur))
		}
		if seen[cur] {
			return invalid(fmt.Sprintf("flow %q: parent cycle through %q", id, cur))
		}
		seen[cur] = true
	}
	return nil
}

// isValidSubjectPart reports whether s can be used as a single NATS subject token.
func isValidSubjectPart(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

func invalid(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "Config", "Validate", "validate configuration")
}
