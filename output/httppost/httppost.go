// Package httppost provides the "http-post" node kind. Each message is POSTed
// as JSON to a fixed endpoint from a background goroutine; the invocation
// completes once the endpoint answers, and a failed delivery is reported to
// the node's Catch observers.
package httppost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/c360/semflow/component"
	"github.com/c360/semflow/config"
	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
	"github.com/c360/semflow/pkg/retry"
)

// Kind is the registered node kind name.
const Kind = "http-post"

// StatusKey receives the endpoint's status code on forwarded messages.
const StatusKey = "statusCode"

// Config holds configuration for an http-post node
type Config struct {
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
	Timeout     config.Duration   `json:"timeout,omitempty"`
	RetryCount  int               `json:"retry_count,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	// Forward sends the message on, stamped with StatusKey, after a successful POST.
	Forward bool `json:"forward,omitempty"`
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "invalid URL format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url scheme must be http or https")
	}
	if c.Timeout < 0 || c.Timeout.Std() > 5*time.Minute {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"timeout must be between 0 and 5m")
	}
	if c.RetryCount < 0 || c.RetryCount > 10 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"retry_count must be between 0 and 10")
	}
	return nil
}

// DefaultConfig returns the defaults applied before the node config is decoded
func DefaultConfig() Config {
	return Config{
		Timeout:     config.Duration(30 * time.Second),
		ContentType: "application/json",
	}
}

// Output posts messages for one node instance
type Output struct {
	ctx         context.Context // cancelled when the node is undeployed
	node        string
	url         string
	headers     map[string]string
	contentType string
	forward     bool
	retry       retry.Config
	client      *http.Client
	logger      *slog.Logger
}

// New builds an http-post node from its raw config
func New(rawConfig json.RawMessage, deps component.Dependencies) (*Output, error) {
	cfg := DefaultConfig()
	if len(rawConfig) > 0 {
		if err := json.Unmarshal(rawConfig, &cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Output", "New", "config unmarshal")
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout.Std()
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.RetryCount + 1

	ctx := deps.Context
	if ctx == nil {
		ctx = context.Background()
	}

	return &Output{
		ctx:         ctx,
		node:        deps.NodeID,
		url:         cfg.URL,
		headers:     cfg.Headers,
		contentType: cfg.ContentType,
		forward:     cfg.Forward,
		retry:       rc,
		client:      &http.Client{Timeout: timeout},
		logger:      logger.With("component", "http-post", "node", deps.NodeID),
	}, nil
}

// Handle posts msg in the background and finalizes when the endpoint answers.
// Undeploying the node aborts the request and its retries with an error.
func (o *Output) Handle(msg *message.Message, send component.SendFunc, done component.DoneFunc) {
	body, err := json.Marshal(msg)
	if err != nil {
		done(errors.WrapInvalid(err, "Output", "Handle", "encode message"))
		return
	}

	go func() {
		status, err := o.deliver(o.ctx, body)
		if err != nil {
			o.logger.Warn("Failed to post message", "message_id", msg.ID(), "error", err)
			done(err)
			return
		}
		o.logger.Debug("Posted message", "message_id", msg.ID(), "status", status)
		if o.forward {
			msg.Set(StatusKey, status)
			send(msg)
		}
		done(nil)
	}()
}

// deliver POSTs body with retries. Client errors (4xx) are not retried.
func (o *Output) deliver(ctx context.Context, body []byte) (int, error) {
	var status int
	err := retry.Do(ctx, o.retry, func() error {
		code, err := o.post(ctx, body)
		status = code
		if err != nil && code >= 400 && code < 500 {
			return retry.NonRetryable(err)
		}
		return err
	})
	if err != nil {
		return status, errors.WrapTransient(err, "Output", "deliver", "post to "+o.url)
	}
	return status, nil
}

func (o *Output) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", o.contentType)
	for key, value := range o.headers {
		req.Header.Set(key, value)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return resp.StatusCode, nil
}

// Register registers the http-post node kind
func Register(registry *component.Registry) error {
	return registry.RegisterFactory(&component.Registration{
		Name:        Kind,
		Description: "POSTs each message to an HTTP endpoint and completes on the response",
		Version:     "0.1.0",
		Signature:   component.Modern,
		Factory: func(rawConfig json.RawMessage, deps component.Dependencies) (any, error) {
			o, err := New(rawConfig, deps)
			if err != nil {
				return nil, err
			}
			return o.Handle, nil
		},
	})
}
