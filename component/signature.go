package component

import (
	"encoding/json"
	"reflect"

	"github.com/c360/semflow/message"
)

// Signature is the resolved callback shape of a node handler
type Signature int

const (
	// Legacy handlers take only the message; completion is inferred on return.
	Legacy Signature = iota
	// Modern handlers take message, send and done; completion is explicit.
	Modern
)

// String returns the string representation of Signature
func (s Signature) String() string {
	if s == Modern {
		return "modern"
	}
	return "legacy"
}

// MarshalJSON encodes the signature by name
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

var (
	messageType = reflect.TypeOf((*message.Message)(nil))
	sendType    = reflect.TypeOf(SendFunc(nil))
	doneType    = reflect.TypeOf(DoneFunc(nil))
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Classify resolves the signature of handler from its declared parameter count.
// Exactly one parameter is Legacy and exactly three is Modern. Every other
// shape, including variadic functions and non-functions, is Legacy.
func Classify(handler any) Signature {
	t := reflect.TypeOf(handler)
	if t == nil || t.Kind() != reflect.Func || t.IsVariadic() {
		return Legacy
	}
	if t.NumIn() == 3 {
		return Modern
	}
	return Legacy
}

// exactArity reports whether t has one of the recognized parameter counts
func exactArity(t reflect.Type) bool {
	return !t.IsVariadic() && (t.NumIn() == 1 || t.NumIn() == 3)
}
