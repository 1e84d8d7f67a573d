package message

import (
	"github.com/google/uuid"
)

// IDGenerator produces fresh message identities.
type IDGenerator func() string

// NewID generates a random UUID identity.
func NewID() string {
	return uuid.New().String()
}

// AssignIdentity gives m a fresh identity from gen when it has none.
// Messages that already carry an identity are left untouched, so the call is
// idempotent. It reports whether an identity was assigned.
func AssignIdentity(m *Message, gen IDGenerator) bool {
	if gen == nil {
		gen = NewID
	}
	return Inherit(m, gen())
}

// Inherit sets m's identity to id when m has none. Derived messages created
// from scratch by a handler use it to take over the identity of the message
// that caused them. It reports whether the identity was set.
func Inherit(m *Message, id string) bool {
	if m == nil || id == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id != "" {
		return false
	}
	m.id = id
	return true
}
