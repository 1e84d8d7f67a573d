package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/semflow/errors"
)

// ConnectionStatus represents the state of the NATS connection.
type ConnectionStatus int32

// Connection states.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
	StatusClosed
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned by Publish while the breaker is open.
var ErrCircuitOpen = fmt.Errorf("%w: circuit breaker open", errors.ErrNoConnection)

// Client manages one NATS connection for ingress subscriptions and egress publishes.
type Client struct {
	url    string
	logger *slog.Logger

	mu   sync.RWMutex
	conn *nats.Conn

	status atomic.Int32

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	timeout       time.Duration
	drainTimeout  time.Duration
	name          string

	circuitThreshold int32
	failures         atomic.Int32
	backoff          atomic.Int64
	maxBackoff       time.Duration
}

// NewClient creates a disconnected client. Call Connect to dial.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	if url == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "natsclient", "NewClient", "url is required")
	}

	c := &Client{
		url:              url,
		logger:           slog.Default(),
		maxReconnects:    -1,
		reconnectWait:    2 * time.Second,
		pingInterval:     30 * time.Second,
		timeout:          5 * time.Second,
		drainTimeout:     30 * time.Second,
		name:             "semflow",
		circuitThreshold: 5,
		maxBackoff:       time.Minute,
	}
	c.backoff.Store(int64(time.Second))

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "natsclient", "NewClient", "apply option")
		}
	}
	c.logger = c.logger.With("component", "natsclient")
	return c, nil
}

// Connect dials the server, honoring ctx cancellation while the dial is in flight.
func (c *Client) Connect(ctx context.Context) error {
	if c.Status() == StatusCircuitOpen {
		return errors.WrapTransient(ErrCircuitOpen, "natsclient", "Connect", "dial "+c.url)
	}
	c.setStatus(StatusConnecting)

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.buildConnectionOptions()...)
		done <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		c.setStatus(StatusDisconnected)
		go func() {
			// The dial may still succeed after ctx is gone.
			if r := <-done; r.conn != nil {
				r.conn.Close()
			}
		}()
		return errors.WrapTransient(ctx.Err(), "natsclient", "Connect", "dial "+c.url)
	case r := <-done:
		if r.err != nil {
			c.setStatus(StatusDisconnected)
			c.recordFailure()
			return errors.WrapTransient(r.err, "natsclient", "Connect", "dial "+c.url)
		}
		c.mu.Lock()
		c.conn = r.conn
		c.mu.Unlock()
		c.resetCircuit()
		c.setStatus(StatusConnected)
		c.logger.Info("Connected to NATS", "url", r.conn.ConnectedUrlRedacted())
		return nil
	}
}

func (c *Client) buildConnectionOptions() []nats.Option {
	return []nats.Option{
		nats.Name(c.name),
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.timeout),
		nats.DrainTimeout(c.drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleError),
	}
}

// Publish sends data on subject. A missing connection or an open breaker is
// reported as a transient error so callers can retry.
func (c *Client) Publish(subject string, data []byte) error {
	switch c.Status() {
	case StatusCircuitOpen:
		return errors.WrapTransient(ErrCircuitOpen, "natsclient", "Publish", "publish to "+subject)
	case StatusClosed:
		return errors.WrapFatal(errors.ErrConnectionLost, "natsclient", "Publish", "publish to "+subject)
	}

	conn := c.Conn()
	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "natsclient", "Publish", "publish to "+subject)
	}
	if err := conn.Publish(subject, data); err != nil {
		c.recordFailure()
		return errors.WrapTransient(err, "natsclient", "Publish", "publish to "+subject)
	}
	c.failures.Store(0)
	return nil
}

// Close drains the connection, waiting until ctx is done at most.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.setStatus(StatusClosed)
	if conn == nil {
		return nil
	}

	drained := make(chan error, 1)
	go func() {
		drained <- conn.Drain()
	}()

	select {
	case err := <-drained:
		if err != nil {
			conn.Close()
			return errors.Wrap(err, "natsclient", "Close", "drain connection")
		}
		return nil
	case <-ctx.Done():
		conn.Close()
		return errors.WrapTransient(ctx.Err(), "natsclient", "Close", "drain connection")
	}
}

// URL returns the configured server URL.
func (c *Client) URL() string {
	return c.url
}

// Conn returns the live connection, or nil before Connect.
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

// IsHealthy reports whether the client can publish.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the consecutive failure count.
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

// Backoff returns the delay before an open breaker is tested again.
func (c *Client) Backoff() time.Duration {
	return time.Duration(c.backoff.Load())
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(int32(s))
}

// recordFailure counts a failure and opens the breaker at the threshold.
func (c *Client) recordFailure() {
	n := c.failures.Add(1)
	if n < c.circuitThreshold {
		return
	}
	c.failures.Store(0)

	current := c.Backoff()
	next := current * 2
	if next > c.maxBackoff {
		next = c.maxBackoff
	}
	c.backoff.Store(int64(next))

	prev := c.Status()
	if prev == StatusCircuitOpen || prev == StatusClosed {
		c.logger.Warn("Circuit breaker still open", "backoff", next)
		return
	}
	if c.status.CompareAndSwap(int32(prev), int32(StatusCircuitOpen)) {
		c.logger.Warn("Circuit breaker opened", "failures", n, "backoff", current)
		time.AfterFunc(current, c.testCircuit)
	}
}

func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.backoff.Store(int64(time.Second))
	c.status.CompareAndSwap(int32(StatusCircuitOpen), int32(StatusDisconnected))
}

// testCircuit half-opens the breaker. A live connection restores Connected.
func (c *Client) testCircuit() {
	if c.Status() != StatusCircuitOpen {
		return
	}
	if conn := c.Conn(); conn != nil && conn.IsConnected() {
		c.status.CompareAndSwap(int32(StatusCircuitOpen), int32(StatusConnected))
		c.logger.Info("Circuit breaker closed")
		return
	}
	c.status.CompareAndSwap(int32(StatusCircuitOpen), int32(StatusDisconnected))
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.Status() == StatusClosed {
		return
	}
	c.setStatus(StatusReconnecting)
	if err != nil {
		c.logger.Warn("Disconnected from NATS", "error", err)
		return
	}
	c.logger.Info("Disconnected from NATS")
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.resetCircuit()
	c.setStatus(StatusConnected)
	c.logger.Info("Reconnected to NATS", "url", conn.ConnectedUrlRedacted())
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusClosed)
	c.logger.Info("NATS connection closed")
}

func (c *Client) handleError(_ *nats.Conn, sub *nats.Subscription, err error) {
	if sub != nil {
		c.logger.Error("NATS subscription error", "subject", sub.Subject, "error", err)
		return
	}
	c.logger.Error("NATS error", "error", err)
}
