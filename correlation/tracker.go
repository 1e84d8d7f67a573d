package correlation

import (
	"log/slog"
	"time"

	"github.com/c360/semflow/message"
	"github.com/c360/semflow/metric"
	"github.com/c360/semflow/pkg/cache"
)

// DefaultIndexSize is the number of origin identities kept for Trace
const DefaultIndexSize = 4096

// maxRecordsPerOrigin bounds the records kept for one origin identity
const maxRecordsPerOrigin = 256

// Tracker assigns identities and records sends. It is safe for concurrent use.
type Tracker struct {
	gen    message.IDGenerator
	now    func() time.Time
	logger *slog.Logger

	indexSize int
	registry  *metric.MetricsRegistry
	index     cache.Cache[[]SendRecord]
}

// Option configures a Tracker
type Option func(*Tracker)

// WithIDGenerator overrides identity generation
func WithIDGenerator(gen message.IDGenerator) Option {
	return func(t *Tracker) {
		if gen != nil {
			t.gen = gen
		}
	}
}

// WithClock overrides the clock used to stamp records
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithIndexSize bounds the trace index. Zero disables it.
func WithIndexSize(size int) Option {
	return func(t *Tracker) {
		t.indexSize = size
	}
}

// WithMetrics exports trace index cache metrics
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(t *Tracker) {
		t.registry = registry
	}
}

// NewTracker creates a tracker
func NewTracker(opts ...Option) (*Tracker, error) {
	t := &Tracker{
		gen:       message.NewID,
		now:       time.Now,
		logger:    slog.Default(),
		indexSize: DefaultIndexSize,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.indexSize > 0 {
		var cacheOpts []cache.Option[[]SendRecord]
		if t.registry != nil {
			cacheOpts = append(cacheOpts, cache.WithMetrics[[]SendRecord](t.registry, "correlation_index"))
		}
		index, err := cache.NewLRU[[]SendRecord](t.indexSize, cacheOpts...)
		if err != nil {
			return nil, err
		}
		t.index = index
	}
	return t, nil
}

// AssignIdentity gives msg a fresh identity if it has none. Idempotent.
func (t *Tracker) AssignIdentity(msg *message.Message) bool {
	return message.AssignIdentity(msg, t.gen)
}

// NewID returns a fresh identity from the tracker's generator
func (t *Tracker) NewID() string {
	return t.gen()
}

// RecordSend records out as emitted by ref. An outgoing message created from
// scratch inherits the origin identity so it stays traceable.
func (t *Tracker) RecordSend(ref Ref, out *message.Message, correlation Correlation) SendRecord {
	message.Inherit(out, ref.OriginID())

	rec := SendRecord{
		ContextID:   ref.ID(),
		NodeID:      ref.NodeID(),
		OriginID:    ref.OriginID(),
		MessageID:   out.ID(),
		Sequence:    ref.NextSequence(),
		Correlation: correlation,
		Timestamp:   t.now(),
	}
	t.remember(rec)
	return rec
}

// RecordUncorrelated records a send that no context owns
func (t *Tracker) RecordUncorrelated(nodeID string, out *message.Message) SendRecord {
	t.AssignIdentity(out)

	rec := SendRecord{
		NodeID:      nodeID,
		OriginID:    out.ID(),
		MessageID:   out.ID(),
		Correlation: Uncorrelated,
		Timestamp:   t.now(),
	}
	t.remember(rec)
	return rec
}

// Trace returns the recorded sends caused by the given origin identity,
// oldest first. Only origins still in the bounded index are returned.
func (t *Tracker) Trace(originID string) []SendRecord {
	if t.index == nil {
		return nil
	}
	records, ok := t.index.Get(originID)
	if !ok {
		return nil
	}
	out := make([]SendRecord, len(records))
	copy(out, records)
	return out
}

func (t *Tracker) remember(rec SendRecord) {
	if t.index == nil || rec.OriginID == "" {
		return
	}
	err := t.index.Update(rec.OriginID, func(old []SendRecord, _ bool) []SendRecord {
		if len(old) >= maxRecordsPerOrigin {
			old = old[1:]
		}
		next := make([]SendRecord, len(old), len(old)+1)
		copy(next, old)
		return append(next, rec)
	})
	if err != nil {
		t.logger.Debug("Send record not indexed", "origin_id", rec.OriginID, "error", err)
	}
}
