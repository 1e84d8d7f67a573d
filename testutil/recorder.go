package testutil

import (
	"sync"
	"time"

	"github.com/c360/semflow/message"
)

// Forwarded is one message seen by a Recorder
type Forwarded struct {
	From    string
	Message *message.Message
}

// Recorder is a thread-safe forwarder that remembers everything it is given.
// It satisfies route.Forwarder.
type Recorder struct {
	mu       sync.Mutex
	received []Forwarded
	err      error
	notify   chan struct{}
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

// FailWith makes subsequent Forward calls return err after recording
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Forward records the message
func (r *Recorder) Forward(from string, msg *message.Message) error {
	r.mu.Lock()
	r.received = append(r.received, Forwarded{From: from, Message: msg})
	err := r.err
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
	return err
}

// All returns a copy of everything recorded so far
func (r *Recorder) All() []Forwarded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Forwarded, len(r.received))
	copy(out, r.received)
	return out
}

// From returns the messages forwarded on behalf of node
func (r *Recorder) From(node string) []*message.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*message.Message
	for _, f := range r.received {
		if f.From == node {
			out = append(out, f.Message)
		}
	}
	return out
}

// Count returns the number of recorded messages
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.received)
}

// WaitFor blocks until at least n messages were recorded or timeout elapses
func (r *Recorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if r.Count() >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return r.Count() >= n
		}
	}
}
