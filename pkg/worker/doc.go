// Package worker provides a generic bounded worker pool.
//
// Submit never blocks: when the queue is full the item is dropped and
// ErrQueueFull is returned, so callers on a hot path (such as a node's send
// callback) can hand work off without stalling the invoking goroutine.
//
//	pool := worker.NewPool(4, 256, func(ctx context.Context, job Job) error {
//	    return job.Run(ctx)
//	}, worker.WithMetricsRegistry[Job](registry, "route_async"))
//	_ = pool.Start(ctx)
//	defer pool.Stop(5 * time.Second)
//
// A panicking processor is recovered and counted as a failure.
package worker
