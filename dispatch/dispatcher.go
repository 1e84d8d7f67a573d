package dispatch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/invocation"
	"github.com/c360/semflow/message"
	"github.com/c360/semflow/metric"
)

// Property names set on observer deliveries
const (
	CompleteKey = "complete"
	ErrorKey    = "error"
)

// DefaultMaxCatchHops bounds how often one message may be caught
const DefaultMaxCatchHops = 10

// Invoker delivers a message to a node
type Invoker interface {
	Invoke(nodeID string, msg *message.Message) (*invocation.Context, error)
}

type catchRegistration struct {
	scope Scope
	nodes map[string]struct{}
}

// Dispatcher routes completion events to observers. Safe for concurrent use.
type Dispatcher struct {
	invoker      Invoker
	flows        FlowResolver
	clock        func() time.Time
	logger       *slog.Logger
	metrics      *metric.Metrics
	maxCatchHops int

	mu       sync.RWMutex
	complete map[string]map[string]struct{} // observer -> source nodes
	catches  map[string]catchRegistration   // observer -> scope
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithFlowResolver sets the containment resolver used for catch scopes
func WithFlowResolver(flows FlowResolver) Option {
	return func(d *Dispatcher) {
		if flows != nil {
			d.flows = flows
		}
	}
}

// WithClock sets the clock used for out-of-context error timestamps
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.clock = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records dispatch metrics in registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(d *Dispatcher) {
		d.metrics = registry.CoreMetrics()
	}
}

// WithMaxCatchHops overrides DefaultMaxCatchHops
func WithMaxCatchHops(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxCatchHops = n
		}
	}
}

// New creates a dispatcher delivering through invoker
func New(invoker Invoker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		invoker:      invoker,
		flows:        rootFlow{},
		clock:        time.Now,
		logger:       slog.Default(),
		maxCatchHops: DefaultMaxCatchHops,
		complete:     make(map[string]map[string]struct{}),
		catches:      make(map[string]catchRegistration),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d
}

// SubscribeComplete registers observerID to run whenever one of targets
// finalizes successfully. Subscribing again replaces the target set.
func (d *Dispatcher) SubscribeComplete(observerID string, targets ...string) error {
	if err := component.ValidateName(observerID); err != nil {
		return errors.Wrap(err, "Dispatcher", "SubscribeComplete", "observer id validation")
	}
	if len(targets) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Dispatcher", "SubscribeComplete", "at least one target required")
	}

	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[t] = struct{}{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.complete[observerID] = set
	return nil
}

// SubscribeCatch registers observerID for errors within scope. Subscribing
// again replaces the scope.
func (d *Dispatcher) SubscribeCatch(observerID string, scope Scope) error {
	if err := component.ValidateName(observerID); err != nil {
		return errors.Wrap(err, "Dispatcher", "SubscribeCatch", "observer id validation")
	}
	if scope.Kind == ScopeNodes && len(scope.Nodes) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Dispatcher", "SubscribeCatch", "node scope requires nodes")
	}

	reg := catchRegistration{scope: scope, nodes: make(map[string]struct{}, len(scope.Nodes))}
	for _, n := range scope.Nodes {
		reg.nodes[n] = struct{}{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.catches[observerID] = reg
	return nil
}

// Unsubscribe removes every registration held by observerID
func (d *Dispatcher) Unsubscribe(observerID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, hadComplete := d.complete[observerID]
	_, hadCatch := d.catches[observerID]
	delete(d.complete, observerID)
	delete(d.catches, observerID)
	return hadComplete || hadCatch
}

// Completed routes a completion event. It runs on the finalizing goroutine.
func (d *Dispatcher) Completed(ev invocation.CompletionEvent) {
	if ev.Failed() {
		d.raise(ev.NodeID, ev.Err, ev.Message, ev.Timestamp)
		return
	}

	for _, observer := range d.completeObservers(ev.NodeID) {
		out := ev.Message.Clone()
		out.Set(CompleteKey, map[string]any{
			"source": map[string]any{"id": ev.NodeID, "context": ev.ContextID},
		})
		d.deliver("complete", observer, out)
	}
}

// Raise delivers err for msg to the catch path without a completion event
func (d *Dispatcher) Raise(nodeID string, err error, msg *message.Message) {
	d.raise(nodeID, err, msg, d.clock())
}

func (d *Dispatcher) raise(nodeID string, err error, msg *message.Message, at time.Time) {
	if msg == nil {
		msg = message.New()
	}
	hops := catchCount(msg) + 1
	if hops > d.maxCatchHops {
		d.metrics.RecordCatchDrop()
		d.logger.Error("Message caught too many times, dropping error",
			"node", nodeID, "message_id", msg.ID(), "hops", hops,
			"error", fmt.Errorf("%w: %v", errors.ErrCatchHopsExceeded, err))
		return
	}

	observers := d.resolveCatches(nodeID)
	if len(observers) == 0 {
		d.metrics.RecordCatchDrop()
		d.logger.Warn("Uncaught error", "node", nodeID, "message_id", msg.ID(), "error", err)
		return
	}

	text := errors.Cause(err).Error()
	for _, observer := range observers {
		out := msg.Clone()
		out.Set(ErrorKey, map[string]any{
			"message":   text,
			"source":    map[string]any{"id": nodeID},
			"timestamp": at.UnixMilli(),
			"count":     hops,
		})
		d.deliver("catch", observer, out)
	}
}

// deliver invokes one observer, containing any failure
func (d *Dispatcher) deliver(kind, observerID string, msg *message.Message) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = errors.FromPanic(r)
		}
		if err != nil {
			err = errors.NewLifecycle(errors.KindDownstreamDelivery, observerID, "", err)
			d.logger.Error("Failed to deliver to observer",
				"kind", kind, "observer", observerID, "message_id", msg.ID(), "error", err)
		}
		d.metrics.RecordDispatch(kind, err)
	}()

	_, err = d.invoker.Invoke(observerID, msg)
}

func (d *Dispatcher) completeObservers(source string) []string {
	d.mu.RLock()
	var observers []string
	for observer, targets := range d.complete {
		if _, ok := targets[source]; ok {
			observers = append(observers, observer)
		}
	}
	d.mu.RUnlock()

	sort.Strings(observers)
	return observers
}

// resolveCatches finds the nearest enclosing catches for source
func (d *Dispatcher) resolveCatches(source string) []string {
	type candidate struct {
		id   string
		flow string
		reg  catchRegistration
	}

	d.mu.RLock()
	candidates := make([]candidate, 0, len(d.catches))
	for id, reg := range d.catches {
		candidates = append(candidates, candidate{id: id, reg: reg})
	}
	d.mu.RUnlock()

	for i := range candidates {
		candidates[i].flow = d.flows.FlowOf(candidates[i].id)
	}

	visited := make(map[string]bool)
	for flow := d.flows.FlowOf(source); !visited[flow]; flow = d.flows.Parent(flow) {
		visited[flow] = true

		var matched, uncaught []string
		for _, c := range candidates {
			if c.flow != flow {
				continue
			}
			switch c.reg.scope.Kind {
			case ScopeFlow:
				matched = append(matched, c.id)
			case ScopeUncaught:
				uncaught = append(uncaught, c.id)
			default:
				if _, ok := c.reg.nodes[source]; ok {
					matched = append(matched, c.id)
				}
			}
		}
		if len(matched) == 0 {
			matched = uncaught
		}
		if len(matched) > 0 {
			sort.Strings(matched)
			return matched
		}
		if flow == "" {
			break
		}
	}
	return nil
}

// catchCount reads the hop counter of a message that was already caught
func catchCount(msg *message.Message) int {
	v, ok := msg.Get(ErrorKey)
	if !ok {
		return 0
	}
	info, ok := v.(map[string]any)
	if !ok {
		return 0
	}
	switch c := info["count"].(type) {
	case int:
		return c
	case int64:
		return int(c)
	case float64:
		return int(c)
	case json.Number:
		n, err := c.Int64()
		if err != nil {
			return 0
		}
		return int(n)
	default:
		return 0
	}
}
