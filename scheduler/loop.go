package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
)

// DefaultQueueLimit bounds the work waiting for the run loop
const DefaultQueueLimit = 10000

// runLoop is a single-goroutine executor. While it runs, submitted
// invocations and completion dispatch execute one at a time, so a node's
// active-context stack only ever holds one invocation chain.
type runLoop struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
	limit   int
	wake    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// WithQueueLimit bounds the submissions waiting for the run loop
func WithQueueLimit(limit int) Option {
	return func(s *Scheduler) {
		if limit > 0 {
			s.loop.limit = limit
		}
	}
}

// Start launches the run loop. Until Stop, Submit queues invocations for it
// and completion events reaching the dispatcher are delivered on it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.loop.mu.Lock()
	defer s.loop.mu.Unlock()
	if s.loop.running {
		return errors.WrapInvalid(errors.ErrAlreadyRunning, "Scheduler", "Start", "start run loop")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.loop.running = true
	s.loop.cancel = cancel
	s.loop.done = make(chan struct{})
	go s.run(runCtx, s.loop.done)

	s.logger.Debug("Run loop started", "queue_limit", s.loop.limit)
	return nil
}

// Stop ends the run loop and waits up to timeout for queued work to finish
func (s *Scheduler) Stop(timeout time.Duration) error {
	s.loop.mu.Lock()
	cancel, done := s.loop.cancel, s.loop.done
	s.loop.cancel = nil
	s.loop.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		s.logger.Debug("Run loop stopped")
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("run loop still busy after %s", timeout), "Scheduler", "Stop", "drain run loop")
	}
}

// Submit queues an invocation of nodeID for the run loop. Invocation errors
// found only when the task runs are logged.
func (s *Scheduler) Submit(nodeID string, msg *message.Message) error {
	if s.lookup(nodeID) == nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrNodeNotFound, nodeID), "Scheduler", "Submit", "node lookup")
	}
	if msg == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Scheduler", "Submit", "nil message")
	}

	task := func() {
		if _, err := s.Invoke(nodeID, msg); err != nil {
			s.logger.Warn("Submitted invocation failed", "node", nodeID, "error", err)
		}
	}

	s.loop.mu.Lock()
	if !s.loop.running {
		s.loop.mu.Unlock()
		return errors.WrapTransient(errors.ErrNotRunning, "Scheduler", "Submit", "queue invocation")
	}
	if len(s.loop.tasks) >= s.loop.limit {
		s.loop.mu.Unlock()
		return errors.WrapTransient(errors.ErrQueueFull, "Scheduler", "Submit", "queue invocation")
	}
	s.loop.tasks = append(s.loop.tasks, task)
	s.loop.mu.Unlock()

	s.loop.signal()
	return nil
}

// Pending returns the number of tasks waiting for the run loop
func (s *Scheduler) Pending() int {
	s.loop.mu.Lock()
	defer s.loop.mu.Unlock()
	return len(s.loop.tasks)
}

// serialize runs fn on the run loop when it is active, otherwise inline.
// Internal work ignores the queue limit.
func (s *Scheduler) serialize(fn func()) {
	s.loop.mu.Lock()
	if !s.loop.running {
		s.loop.mu.Unlock()
		fn()
		return
	}
	s.loop.tasks = append(s.loop.tasks, fn)
	s.loop.mu.Unlock()
	s.loop.signal()
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			s.drain()
			return
		}
		if task := s.loop.next(); task != nil {
			task()
			continue
		}
		select {
		case <-ctx.Done():
		case <-s.loop.wake:
		}
	}
}

// drain runs what is still queued. Work arriving afterwards runs inline.
func (s *Scheduler) drain() {
	s.loop.mu.Lock()
	s.loop.running = false
	tasks := s.loop.tasks
	s.loop.tasks = nil
	s.loop.mu.Unlock()

	for _, task := range tasks {
		task()
	}
}

func (l *runLoop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.tasks) == 0 {
		return nil
	}
	task := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return task
}

func (l *runLoop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
