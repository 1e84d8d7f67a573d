package scheduler

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/correlation"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/invocation"
	"github.com/c360/semflow/message"
	"github.com/c360/semflow/metric"
	"github.com/c360/semflow/route"
)

// Dispatcher receives completion events and out-of-context error reports
type Dispatcher interface {
	// Completed is called once per finalized context.
	Completed(ev invocation.CompletionEvent)
	// Raise delivers err for msg to the catch path without a completion event.
	Raise(nodeID string, err error, msg *message.Message)
}

// Scheduler owns node registrations, their active-context stacks and the set
// of open contexts. It is safe for concurrent use, but shared sends from a
// single-parameter handler are attributed through a per-node stack, so callers
// on several goroutines should Start the run loop and Submit instead of
// calling Invoke directly.
type Scheduler struct {
	tracker   *correlation.Tracker
	forwarder route.Forwarder
	clock     func() time.Time
	logger    *slog.Logger
	metrics   *metric.Metrics

	mu         sync.RWMutex
	nodes      map[string]*node
	open       map[string]*openContext
	dispatcher Dispatcher

	loop runLoop
}

type node struct {
	id      string
	adapter *component.Adapter
	timeout time.Duration

	stackMu sync.Mutex
	stack   []*invocation.Context
}

type openContext struct {
	ctx   *invocation.Context
	timer *time.Timer
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithTracker sets the correlation tracker
func WithTracker(tracker *correlation.Tracker) Option {
	return func(s *Scheduler) {
		s.tracker = tracker
	}
}

// WithClock sets the clock used for context timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records lifecycle metrics in registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Scheduler) {
		s.metrics = registry.CoreMetrics()
	}
}

// WithDispatcher sets the completion dispatcher
func WithDispatcher(d Dispatcher) Option {
	return func(s *Scheduler) {
		s.dispatcher = d
	}
}

// New creates a scheduler that forwards sends to forwarder
func New(forwarder route.Forwarder, opts ...Option) (*Scheduler, error) {
	if forwarder == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Scheduler", "New", "forwarder required")
	}

	s := &Scheduler{
		forwarder: forwarder,
		clock:     time.Now,
		logger:    slog.Default(),
		nodes:     make(map[string]*node),
		open:      make(map[string]*openContext),
		loop:      runLoop{limit: DefaultQueueLimit, wake: make(chan struct{}, 1)},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")

	if s.tracker == nil {
		tracker, err := correlation.NewTracker(correlation.WithClock(s.clock), correlation.WithLogger(s.logger))
		if err != nil {
			return nil, errors.Wrap(err, "Scheduler", "New", "create tracker")
		}
		s.tracker = tracker
	}
	return s, nil
}

// SetDispatcher replaces the completion dispatcher. Dispatchers usually need
// the scheduler to deliver observer messages, so they are attached after New.
func (s *Scheduler) SetDispatcher(d Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

// Tracker returns the correlation tracker
func (s *Scheduler) Tracker() *correlation.Tracker {
	return s.tracker
}

// NodeOption configures one node registration
type NodeOption func(*node)

// WithNodeTimeout force-finalizes the node's contexts still open after d
func WithNodeTimeout(d time.Duration) NodeOption {
	return func(n *node) {
		n.timeout = d
	}
}

// Register classifies handler and registers it under nodeID
func (s *Scheduler) Register(nodeID string, handler any, opts ...NodeOption) (component.Signature, error) {
	adapter, err := component.Adapt(handler)
	if err != nil {
		return component.Legacy, errors.Wrap(err, "Scheduler", "Register", "adapt handler for "+nodeID)
	}
	if err := s.RegisterAdapter(nodeID, adapter, opts...); err != nil {
		return component.Legacy, err
	}
	return adapter.Signature(), nil
}

// RegisterAdapter registers an already adapted handler under nodeID
func (s *Scheduler) RegisterAdapter(nodeID string, adapter *component.Adapter, opts ...NodeOption) error {
	if err := component.ValidateName(nodeID); err != nil {
		return errors.Wrap(err, "Scheduler", "RegisterAdapter", "node id validation")
	}
	if adapter == nil {
		return errors.WrapInvalid(errors.ErrInvalidHandler, "Scheduler", "RegisterAdapter", "adapter validation")
	}

	n := &node{id: nodeID, adapter: adapter}
	for _, opt := range opts {
		opt(n)
	}

	s.mu.Lock()
	if _, exists := s.nodes[nodeID]; exists {
		s.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("node %q is already registered", nodeID),
			"Scheduler", "RegisterAdapter", "duplicate node check")
	}
	s.nodes[nodeID] = n
	s.mu.Unlock()

	if diag := adapter.Diagnostic(); diag != nil {
		s.metrics.RecordSignatureFallback(nodeID)
		s.logger.Warn("Handler signature not recognized, defaulting to legacy",
			"node", nodeID, "handler", adapter.HandlerType(), "error", diag)
	}
	s.logger.Debug("Node registered", "node", nodeID, "signature", adapter.Signature().String())
	return nil
}

// Unregister removes a node. Its open contexts still finalize normally.
func (s *Scheduler) Unregister(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[nodeID]; !exists {
		return false
	}
	delete(s.nodes, nodeID)
	return true
}

// Signature returns the classification stored for nodeID
func (s *Scheduler) Signature(nodeID string) (component.Signature, bool) {
	n := s.lookup(nodeID)
	if n == nil {
		return component.Legacy, false
	}
	return n.adapter.Signature(), true
}

// Nodes returns the registered node ids in sorted order
func (s *Scheduler) Nodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Scheduler) lookup(nodeID string) *node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[nodeID]
}

func (s *Scheduler) currentDispatcher() Dispatcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dispatcher
}
