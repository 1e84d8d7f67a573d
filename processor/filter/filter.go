package filter

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
)

// Kind is the registered node kind name.
const Kind = "filter"

// ErrRejected finalizes an invocation whose message failed the rules when
// RejectError is set.
var ErrRejected = stderrors.New("message rejected by filter")

// Config holds configuration for a filter node
type Config struct {
	Rules       []Rule `json:"rules"`
	RejectError bool   `json:"reject_error,omitempty"`
}

// Rule defines a single filter condition
type Rule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"` // eq|ne|gt|gte|lt|lte|contains
	Value    any    `json:"value"`
}

var operators = map[string]bool{
	"eq": true, "ne": true, "gt": true, "gte": true, "lt": true, "lte": true, "contains": true,
}

// Filter evaluates rules against messages.
type Filter struct {
	nodeID      string
	rules       []Rule
	rejectError bool
	logger      *slog.Logger
	metrics     *filterMetrics
}

// New creates a filter from its raw configuration
func New(rawConfig json.RawMessage, deps component.Dependencies) (*Filter, error) {
	var cfg Config
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Filter", "New", "config unmarshal")
		}
	}
	for i, r := range cfg.Rules {
		if r.Field == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: rule %d has no field", errors.ErrInvalidConfig, i),
				"Filter", "New", "rule validation")
		}
		if !operators[r.Operator] {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: rule %d has unknown operator %q", errors.ErrInvalidConfig, i, r.Operator),
				"Filter", "New", "rule validation")
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	metrics, err := newFilterMetrics(deps.MetricsRegistry)
	if err != nil {
		logger.Error("Failed to initialize filter metrics", "error", err)
		metrics = nil
	}

	return &Filter{
		nodeID:      deps.NodeID,
		rules:       cfg.Rules,
		rejectError: cfg.RejectError,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Handle is the node handler.
func (f *Filter) Handle(msg *message.Message, send component.SendFunc, done component.DoneFunc) {
	start := time.Now()
	matched := f.Matches(msg)
	f.metrics.recordEvaluation(f.nodeID, matched, time.Since(start))

	if matched {
		send(msg)
		done(nil)
		return
	}

	f.logger.Debug("Message filtered out", "message_id", msg.ID(), "rules_count", len(f.rules))
	if f.rejectError {
		done(ErrRejected)
		return
	}
	done(nil)
}

// Matches reports whether msg satisfies every rule. No rules match everything.
func (f *Filter) Matches(msg *message.Message) bool {
	for _, rule := range f.rules {
		if !matchesRule(msg, rule) {
			return false
		}
	}
	return true
}

func matchesRule(msg *message.Message, rule Rule) bool {
	value, ok := lookup(msg, rule.Field)
	if !ok || value == nil {
		return false
	}

	switch rule.Operator {
	case "eq":
		return fmt.Sprint(value) == fmt.Sprint(rule.Value)
	case "ne":
		return fmt.Sprint(value) != fmt.Sprint(rule.Value)
	case "gt":
		return compareNumbers(value, rule.Value) > 0
	case "gte":
		return compareNumbers(value, rule.Value) >= 0
	case "lt":
		return compareNumbers(value, rule.Value) < 0
	case "lte":
		return compareNumbers(value, rule.Value) <= 0
	case "contains":
		return strings.Contains(fmt.Sprint(value), fmt.Sprint(rule.Value))
	default:
		return false
	}
}

// lookup resolves a dot-separated path: the first segment names a message
// property, the rest walk nested maps.
func lookup(msg *message.Message, field string) (any, bool) {
	parts := strings.Split(field, ".")
	value, ok := msg.Get(parts[0])
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		m, isMap := value.(map[string]any)
		if !isMap {
			return nil, false
		}
		value, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return value, true
}

// compareNumbers compares two numeric values
func compareNumbers(a, b any) int {
	aNum := toFloat64(a)
	bNum := toFloat64(b)

	if aNum < bNum {
		return -1
	} else if aNum > bNum {
		return 1
	}
	return 0
}

// toFloat64 converts any to float64 for comparison
func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}

// Register registers the filter node kind
func Register(registry *component.Registry) error {
	return registry.RegisterFactory(&component.Registration{
		Name:        Kind,
		Description: "Forwards messages whose properties match every configured rule",
		Version:     "0.1.0",
		Signature:   component.Modern,
		Factory: func(rawConfig json.RawMessage, deps component.Dependencies) (any, error) {
			f, err := New(rawConfig, deps)
			if err != nil {
				return nil, err
			}
			return f.Handle, nil
		},
	})
}
