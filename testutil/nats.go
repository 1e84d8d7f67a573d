package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Published is one message seen by a MockPublisher
type Published struct {
	Subject string
	Data    []byte
}

// MockPublisher records publishes and can fail a scripted number of times.
// It satisfies route.Publisher.
type MockPublisher struct {
	mu        sync.Mutex
	published []Published
	failures  []error
	attempts  int
}

// NewMockPublisher creates a publisher that returns each error in failures,
// in order, before succeeding.
func NewMockPublisher(failures ...error) *MockPublisher {
	return &MockPublisher{failures: failures}
}

// Publish records the message or returns the next scripted failure
func (p *MockPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempts++
	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]
		return err
	}
	p.published = append(p.published, Published{Subject: subject, Data: append([]byte(nil), data...)})
	return nil
}

// Published returns a copy of the successful publishes
func (p *MockPublisher) Published() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Published, len(p.published))
	copy(out, p.published)
	return out
}

// Attempts returns the number of Publish calls, including failed ones
func (p *MockPublisher) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

// NATSVersion is the server image tag used by integration tests
const NATSVersion = "2.11.7-alpine"

// StartNATS runs a NATS server container and returns its client URL.
// The container is terminated when the test ends.
func StartNATS(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "nats:" + NATSVersion,
		ExposedPorts: []string{"4222/tcp", "8222/tcp"},
		Cmd:          []string{"--port", "4222", "--http_port", "8222"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4222/tcp"),
			wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(30*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start NATS container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	return fmt.Sprintf("nats://%s:%s", host, port.Port())
}
