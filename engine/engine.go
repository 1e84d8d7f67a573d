package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/config"
	"github.com/c360/semflow/correlation"
	"github.com/c360/semflow/dispatch"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/invocation"
	"github.com/c360/semflow/message"
	"github.com/c360/semflow/metric"
	"github.com/c360/semflow/route"
	"github.com/c360/semflow/scheduler"
)

// Engine builds and runs a node graph
type Engine struct {
	registry   *component.Registry
	tracker    *correlation.Tracker
	scheduler  *scheduler.Scheduler
	dispatcher *dispatch.Dispatcher
	flows      *dispatch.Flows
	runtime    config.RuntimeConfig

	metricsRegistry *metric.MetricsRegistry
	nodeLogger      *slog.Logger
	logger          *slog.Logger
	metrics         *engineMetrics

	mu        sync.Mutex
	deployed  map[string]string // node -> kind
	observers []string
	cancel    context.CancelFunc // ends the deployed nodes' context
}

type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	clock    func() time.Time
	ids      message.IDGenerator
	runtime  config.RuntimeConfig
}

// Option configures an Engine
type Option func(*options)

// WithLogger sets the logger shared by every part of the engine
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records lifecycle and engine metrics in registry
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithClock sets the clock for context and dispatch timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithIDGenerator sets the message identity generator
func WithIDGenerator(gen message.IDGenerator) Option {
	return func(o *options) {
		if gen != nil {
			o.ids = gen
		}
	}
}

// WithRuntime applies send index size, catch hop limit and default node timeout
func WithRuntime(rt config.RuntimeConfig) Option {
	return func(o *options) {
		o.runtime = rt
	}
}

// New creates an engine whose sends go to forwarder
func New(registry *component.Registry, forwarder route.Forwarder, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "New", "component registry required")
	}

	o := options{logger: slog.Default(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	trackerOpts := []correlation.Option{
		correlation.WithClock(o.clock),
		correlation.WithLogger(o.logger),
		correlation.WithMetrics(o.registry),
	}
	if o.runtime.SendIndexSize > 0 {
		trackerOpts = append(trackerOpts, correlation.WithIndexSize(o.runtime.SendIndexSize))
	}
	if o.ids != nil {
		trackerOpts = append(trackerOpts, correlation.WithIDGenerator(o.ids))
	}
	tracker, err := correlation.NewTracker(trackerOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "New", "create tracker")
	}

	sched, err := scheduler.New(forwarder,
		scheduler.WithTracker(tracker),
		scheduler.WithClock(o.clock),
		scheduler.WithLogger(o.logger),
		scheduler.WithMetrics(o.registry),
	)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "New", "create scheduler")
	}

	flows := dispatch.NewFlows()
	dispatchOpts := []dispatch.Option{
		dispatch.WithFlowResolver(flows),
		dispatch.WithClock(o.clock),
		dispatch.WithLogger(o.logger),
		dispatch.WithMetrics(o.registry),
	}
	if o.runtime.MaxCatchHops > 0 {
		dispatchOpts = append(dispatchOpts, dispatch.WithMaxCatchHops(o.runtime.MaxCatchHops))
	}
	disp := dispatch.New(sched, dispatchOpts...)
	sched.SetDispatcher(disp)

	logger := o.logger.With("component", "engine")
	metrics, err := newEngineMetrics(o.registry)
	if err != nil {
		logger.Error("Failed to initialize engine metrics", "error", err)
		metrics = nil
	}

	return &Engine{
		registry:        registry,
		tracker:         tracker,
		scheduler:       sched,
		dispatcher:      disp,
		flows:           flows,
		runtime:         o.runtime,
		metricsRegistry: o.registry,
		nodeLogger:      o.logger,
		logger:          logger,
		metrics:         metrics,
		deployed:        make(map[string]string),
	}, nil
}

// Deploy replaces the running graph with the one described by cfg
func (e *Engine) Deploy(cfg *config.Config) (err error) {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "Deploy", "config required")
	}

	start := time.Now()
	defer func() {
		e.metrics.recordDeploy(err == nil, time.Since(start))
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	e.undeployLocked()

	nodeCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	for _, f := range cfg.Flows {
		e.flows.Nest(f.ID, f.Parent)
	}

	for _, n := range cfg.Nodes {
		if err := e.deployNode(nodeCtx, n); err != nil {
			e.undeployLocked()
			return errors.Wrap(err, "Engine", "Deploy", "deploy node "+n.ID)
		}
	}

	for _, o := range cfg.Observers.Complete {
		if err := e.dispatcher.SubscribeComplete(o.Node, o.Targets...); err != nil {
			e.undeployLocked()
			return errors.Wrap(err, "Engine", "Deploy", "subscribe complete observer "+o.Node)
		}
		e.observers = append(e.observers, o.Node)
	}

	for _, o := range cfg.Observers.Catch {
		scope, err := catchScope(o)
		if err == nil {
			err = e.dispatcher.SubscribeCatch(o.Node, scope)
		}
		if err != nil {
			e.undeployLocked()
			return errors.Wrap(err, "Engine", "Deploy", "subscribe catch observer "+o.Node)
		}
		e.observers = append(e.observers, o.Node)
	}

	e.metrics.setDeployedNodes(len(e.deployed))
	e.logger.Info("Deployed node graph",
		"nodes", len(e.deployed),
		"flows", len(cfg.Flows),
		"observers", len(e.observers))
	return nil
}

func (e *Engine) deployNode(ctx context.Context, n config.NodeConfig) error {
	adapter, err := e.registry.Create(n.Kind, n.Config, component.Dependencies{
		Context:         ctx,
		NodeID:          n.ID,
		Logger:          e.nodeLogger,
		Emitter:         e.scheduler.Node(n.ID),
		MetricsRegistry: e.metricsRegistry,
	})
	if err != nil {
		return err
	}

	timeout := n.Timeout.Std()
	if timeout == 0 {
		timeout = e.runtime.NodeTimeout.Std()
	}
	var opts []scheduler.NodeOption
	if timeout > 0 {
		opts = append(opts, scheduler.WithNodeTimeout(timeout))
	}

	if err := e.scheduler.RegisterAdapter(n.ID, adapter, opts...); err != nil {
		return err
	}
	e.flows.Place(n.ID, n.Flow)
	e.deployed[n.ID] = n.Kind

	e.logger.Debug("Deployed node",
		"node", n.ID,
		"kind", n.Kind,
		"flow", n.Flow,
		"signature", adapter.Signature().String(),
		"timeout", timeout)
	return nil
}

// Undeploy removes every node and observer registration
func (e *Engine) Undeploy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.undeployLocked()
	e.metrics.setDeployedNodes(0)
}

func (e *Engine) undeployLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	for _, id := range e.observers {
		e.dispatcher.Unsubscribe(id)
	}
	e.observers = nil
	for id := range e.deployed {
		e.scheduler.Unregister(id)
	}
	e.deployed = make(map[string]string)
	e.flows.Reset()
}

// Invoke delivers msg to nodeID
func (e *Engine) Invoke(nodeID string, msg *message.Message) (*invocation.Context, error) {
	return e.scheduler.Invoke(nodeID, msg)
}

// Start launches the scheduler run loop that Submit feeds
func (e *Engine) Start(ctx context.Context) error {
	return e.scheduler.Start(ctx)
}

// Stop ends the run loop, waiting up to timeout for queued work
func (e *Engine) Stop(timeout time.Duration) error {
	return e.scheduler.Stop(timeout)
}

// Submit queues msg for nodeID on the run loop. Concurrent producers such
// as NATS subscriptions use Submit so node invocations never overlap.
func (e *Engine) Submit(nodeID string, msg *message.Message) error {
	return e.scheduler.Submit(nodeID, msg)
}

// Nodes returns the deployed node ids with their kinds
func (e *Engine) Nodes() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.deployed))
	for id, kind := range e.deployed {
		out[id] = kind
	}
	return out
}

// NodeIDs returns the deployed node ids in sorted order
func (e *Engine) NodeIDs() []string {
	nodes := e.Nodes()
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Scheduler returns the engine's scheduler
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.scheduler }

// Dispatcher returns the engine's completion dispatcher
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }

// Tracker returns the engine's correlation tracker
func (e *Engine) Tracker() *correlation.Tracker { return e.tracker }

func catchScope(o config.CatchConfig) (dispatch.Scope, error) {
	switch o.Scope {
	case config.CatchScopeNodes:
		return dispatch.Nodes(o.Targets...), nil
	case config.CatchScopeFlow:
		return dispatch.WholeFlow(), nil
	case config.CatchScopeUncaught:
		return dispatch.Uncaught(), nil
	default:
		return dispatch.Scope{}, errors.WrapInvalid(
			fmt.Errorf("%w: unknown catch scope %q", errors.ErrInvalidConfig, o.Scope),
			"Engine", "catchScope", "scope lookup")
	}
}
