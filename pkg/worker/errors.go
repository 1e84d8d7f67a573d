package worker

import "errors"

// Pool lifecycle errors. route.Async maps ErrQueueFull onto the transient
// errors.ErrQueueFull so callers see a classified error.
var (
	ErrPoolNotStarted     = errors.New("worker pool: not started")
	ErrPoolStopped        = errors.New("worker pool: stopped")
	ErrPoolAlreadyStarted = errors.New("worker pool: already started")
	ErrQueueFull          = errors.New("worker pool: queue full")

	// ErrNilProcessor is the panic value of NewPool without a processor.
	ErrNilProcessor = errors.New("worker pool: nil processor")
	// ErrStopTimeout is returned by Stop when workers outlive its deadline.
	ErrStopTimeout = errors.New("worker pool: workers still running after stop deadline")
)
