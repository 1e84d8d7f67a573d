package testutil

import (
	"sync"
	"time"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/message"
)

// Capture records the send and done calls of one direct handler invocation,
// for testing node kinds without a scheduler.
type Capture struct {
	mu     sync.Mutex
	sent   []*message.Message
	errs   []error
	calls  int
	doneCh chan struct{}
}

// NewCapture creates an empty capture
func NewCapture() *Capture {
	return &Capture{doneCh: make(chan struct{})}
}

// Send is a component.SendFunc
func (c *Capture) Send(msg *message.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
}

// Done is a component.DoneFunc. The first call releases WaitDone.
func (c *Capture) Done(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.errs = append(c.errs, err)
	if c.calls == 1 {
		close(c.doneCh)
	}
}

// Funcs returns the capture as callback values
func (c *Capture) Funcs() (component.SendFunc, component.DoneFunc) {
	return c.Send, c.Done
}

// Sent returns a copy of the sent messages
func (c *Capture) Sent() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*message.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// DoneCalls returns how many times done was called
func (c *Capture) DoneCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Err returns the error passed to the first done call
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	return c.errs[0]
}

// WaitDone blocks until done is called or timeout elapses
func (c *Capture) WaitDone(timeout time.Duration) bool {
	select {
	case <-c.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Emitter is a component.Emitter that records shared sends and reports
type Emitter struct {
	mu      sync.Mutex
	sent    []*message.Message
	reports []error
}

// Send records msg
func (e *Emitter) Send(msg *message.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, msg)
}

// Report records err
func (e *Emitter) Report(err error, _ *message.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reports = append(e.reports, err)
}

// Sent returns a copy of the shared sends
func (e *Emitter) Sent() []*message.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*message.Message, len(e.sent))
	copy(out, e.sent)
	return out
}

// Reports returns a copy of the reported errors
func (e *Emitter) Reports() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.reports))
	copy(out, e.reports)
	return out
}
