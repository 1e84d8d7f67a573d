// Package message defines the unit of data that flows between nodes.
//
// A Message is an ordered mapping of named properties plus an identity. The
// identity is assigned once, when the message first enters the tracked system,
// and is preserved by Clone so that every message derived from an inbound
// message can be traced back to it. Properties are mutable; the identity is not.
//
// # Identity
//
//	msg := message.New()
//	msg.Set("payload", 42)
//	message.AssignIdentity(msg, message.NewID) // true, identity assigned
//	message.AssignIdentity(msg, message.NewID) // false, already has one
//
//	out := msg.Clone() // same ID(), independent properties
//
// # Wire Format
//
// Messages marshal to a JSON object whose first member is "_msgid" followed by
// the properties in insertion order:
//
//	{"_msgid":"8f0c...","topic":"sensors","payload":42}
//
// Unmarshalling restores both the identity and the property order.
package message
