package route

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
	"github.com/c360/semflow/metric"
	"github.com/c360/semflow/pkg/worker"
)

type envelope struct {
	from string
	msg  *message.Message
}

// Async forwards through a bounded worker pool
type Async struct {
	next   Forwarder
	pool   *worker.Pool[envelope]
	logger *slog.Logger
}

// AsyncConfig sizes the pool behind Async
type AsyncConfig struct {
	Workers   int
	QueueSize int
	Logger    *slog.Logger
	Metrics   metric.MetricsRegistrar
}

// NewAsync wraps next so that Forward returns immediately
func NewAsync(next Forwarder, cfg AsyncConfig) *Async {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &Async{next: next, logger: logger}
	opts := []worker.Option[envelope]{
		worker.WithErrorHandler(func(env envelope, err error) {
			a.logger.Error("Async forward failed", "node", env.from, "message_id", env.msg.ID(), "error", err)
		}),
	}
	if cfg.Metrics != nil {
		opts = append(opts, worker.WithMetricsRegistry[envelope](cfg.Metrics, "semflow_forward"))
	}

	a.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, func(_ context.Context, env envelope) error {
		return a.next.Forward(env.from, env.msg)
	}, opts...)
	return a
}

// Start launches the pool workers
func (a *Async) Start(ctx context.Context) error {
	return a.pool.Start(ctx)
}

// Stop drains queued messages for up to timeout
func (a *Async) Stop(timeout time.Duration) error {
	return a.pool.Stop(timeout)
}

// Forward queues a snapshot of msg. It never blocks.
func (a *Async) Forward(from string, msg *message.Message) error {
	err := a.pool.Submit(envelope{from: from, msg: msg.Clone()})
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, worker.ErrQueueFull):
		return errors.WrapTransient(errors.ErrQueueFull, "Async", "Forward", "enqueue message")
	default:
		return errors.WrapFatal(err, "Async", "Forward", "enqueue message")
	}
}

// Stats exposes the pool statistics
func (a *Async) Stats() worker.PoolStats {
	return a.pool.Stats()
}
