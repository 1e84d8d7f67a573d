package testutil

import (
	"fmt"
	"sync/atomic"

	"github.com/c360/semflow/message"
)

// TestPayloads are generic payloads with no domain meaning
var TestPayloads = []map[string]any{
	{"id": 1, "value": "foo", "count": 42},
	{"id": 2, "value": "bar", "count": 43},
	{"id": 3, "value": "baz", "count": 44},
}

// TestMessageJSON is a wire-format message with an identity and extra properties
const TestMessageJSON = `{"_msgid":"msg-fixture-1","payload":{"value":"foo","count":42},"topic":"sensors/a"}`

// SequentialIDs returns a deterministic identity generator: prefix-1, prefix-2, ...
func SequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}

// NewMessage builds a message with payload and an optional topic property
func NewMessage(payload any, topic string) *message.Message {
	msg := message.NewWithPayload(payload)
	if topic != "" {
		msg.Set("topic", topic)
	}
	return msg
}
