package route

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
	"github.com/c360/semflow/pkg/retry"
)

// Publisher is the part of *nats.Conn the NATS forwarder uses
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes forwarded messages as JSON
type NATS struct {
	pub    Publisher
	prefix string
	retry  retry.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NATSOption configures the NATS forwarder
type NATSOption func(*NATS)

// WithRetry overrides the publish retry policy
func WithRetry(cfg retry.Config) NATSOption {
	return func(n *NATS) {
		n.retry = cfg
	}
}

// WithNATSLogger sets the logger
func WithNATSLogger(logger *slog.Logger) NATSOption {
	return func(n *NATS) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNATS creates a forwarder publishing to <prefix>.out.<node>
func NewNATS(pub Publisher, prefix string, opts ...NATSOption) *NATS {
	ctx, cancel := context.WithCancel(context.Background())
	n := &NATS{
		pub:    pub,
		prefix: prefix,
		retry:  retry.DefaultConfig(),
		logger: slog.Default(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.retry.Retryable == nil {
		n.retry.Retryable = errors.IsTransient
	}
	return n
}

// OutSubject returns the subject messages sent by node are published on
func OutSubject(prefix, node string) string {
	return prefix + ".out." + node
}

// InSubject returns the subject node receives messages on
func InSubject(prefix, node string) string {
	return prefix + ".in." + node
}

// Forward publishes msg, retrying transient failures
func (n *NATS) Forward(from string, msg *message.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return errors.WrapInvalid(err, "NATS", "Forward", "encode message")
	}

	subject := OutSubject(n.prefix, from)
	err = retry.Do(n.ctx, n.retry, func() error {
		return n.pub.Publish(subject, data)
	})
	if err != nil {
		return errors.WrapTransient(err, "NATS", "Forward", "publish to "+subject)
	}
	return nil
}

// Close aborts in-flight retries
func (n *NATS) Close() {
	n.cancel()
}

// SubscribeIngress decodes JSON messages arriving on <prefix>.in.<node> and
// hands them to deliver. Undecodable payloads are logged and skipped.
func SubscribeIngress(
	conn *nats.Conn, prefix, node string, logger *slog.Logger, deliver func(*message.Message),
) (*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}
	subject := InSubject(prefix, node)

	sub, err := conn.Subscribe(subject, func(m *nats.Msg) {
		msg := message.New()
		if err := json.Unmarshal(m.Data, msg); err != nil {
			logger.Warn("Dropping undecodable message", "subject", m.Subject, "error", err)
			return
		}
		deliver(msg)
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "route", "SubscribeIngress", "subscribe to "+subject)
	}
	return sub, nil
}
