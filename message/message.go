package message

import (
	"sync"
)

// IDKey is the wire name of the message identity.
const IDKey = "_msgid"

// PayloadKey is the conventional property carrying the message body.
const PayloadKey = "payload"

// Message is an ordered mapping of named properties carrying an immutable
// identity once assigned. The zero value is an empty message without identity.
//
// Message is safe for concurrent use, but handlers that hand a message to
// several goroutines should Clone it first to keep their edits independent.
type Message struct {
	mu    sync.RWMutex
	id    string
	keys  []string
	props map[string]any
}

// New creates an empty message without identity.
func New() *Message {
	return &Message{props: make(map[string]any)}
}

// NewWithPayload creates a message whose payload property is set.
func NewWithPayload(payload any) *Message {
	m := New()
	m.Set(PayloadKey, payload)
	return m
}

// ID returns the message identity, or "" when none has been assigned.
func (m *Message) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

// HasID reports whether an identity has been assigned.
func (m *Message) HasID() bool {
	return m.ID() != ""
}

// Get returns the property stored under key.
func (m *Message) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.props[key]
	return v, ok
}

// GetString returns the property under key when it is a string.
func (m *Message) GetString(key string) string {
	v, _ := m.Get(key)
	s, _ := v.(string)
	return s
}

// Set stores a property, keeping the position of an existing key.
// The identity key cannot be set as a property.
func (m *Message) Set(key string, value any) {
	if key == IDKey || key == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.props == nil {
		m.props = make(map[string]any)
	}
	if _, exists := m.props[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.props[key] = value
}

// Delete removes a property and reports whether it existed.
func (m *Message) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.props[key]; !exists {
		return false
	}
	delete(m.props, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns property names in insertion order.
func (m *Message) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of properties.
func (m *Message) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// Payload returns the payload property.
func (m *Message) Payload() any {
	v, _ := m.Get(PayloadKey)
	return v
}

// SetPayload replaces the payload property.
func (m *Message) SetPayload(payload any) {
	m.Set(PayloadKey, payload)
}

// Clone returns a deep copy of the properties that keeps the same identity.
// Maps, slices and nested messages are copied; other values are shared.
func (m *Message) Clone() *Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := &Message{
		id:    m.id,
		keys:  make([]string, len(m.keys)),
		props: make(map[string]any, len(m.props)),
	}
	copy(c.keys, m.keys)
	for k, v := range m.props {
		c.props[k] = deepCopy(v)
	}
	return c
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = deepCopy(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = deepCopy(inner)
		}
		return out
	case []byte:
		out := make([]byte, len(val))
		copy(out, val)
		return out
	case *Message:
		if val == nil {
			return val
		}
		return val.Clone()
	default:
		return v
	}
}
