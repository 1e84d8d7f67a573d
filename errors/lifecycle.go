package errors

import (
	"errors"
	"fmt"
)

// Kind identifies which part of the message lifecycle produced an error.
type Kind int

const (
	// KindNone is returned by KindOf for errors that carry no lifecycle kind.
	KindNone Kind = iota
	// KindHandlerThrow is a panic or returned error escaping a handler body.
	KindHandlerThrow
	// KindDoneError is an explicit error passed to done.
	KindDoneError
	// KindDoubleFinalize is a second finalize attempt on a finalized context.
	KindDoubleFinalize
	// KindSignatureDetection is an unrecognized handler arity.
	KindSignatureDetection
	// KindDownstreamDelivery is a failure inside an observer being notified.
	KindDownstreamDelivery
	// KindTimeout is a force-finalization by a timeout governor.
	KindTimeout
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindHandlerThrow:
		return "handler_throw"
	case KindDoneError:
		return "done_error"
	case KindDoubleFinalize:
		return "double_finalize"
	case KindSignatureDetection:
		return "signature_detection"
	case KindDownstreamDelivery:
		return "downstream_delivery"
	case KindTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// LifecycleError annotates an error with the lifecycle kind and the node and
// invocation context it belongs to. Error() returns the underlying message
// unchanged so that catch payloads do not depend on how the error was raised.
type LifecycleError struct {
	Kind      Kind
	NodeID    string
	ContextID string
	Err       error
}

// Error implements the error interface
func (le *LifecycleError) Error() string {
	if le.Err == nil {
		return le.Kind.String()
	}
	return le.Err.Error()
}

// Unwrap returns the underlying error
func (le *LifecycleError) Unwrap() error {
	return le.Err
}

// NewLifecycle wraps err with a lifecycle kind. A nil err yields nil.
func NewLifecycle(kind Kind, nodeID, contextID string, err error) error {
	if err == nil {
		return nil
	}
	return &LifecycleError{Kind: kind, NodeID: nodeID, ContextID: contextID, Err: err}
}

// KindOf returns the outermost lifecycle kind in err's chain, or KindNone.
func KindOf(err error) Kind {
	var le *LifecycleError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindNone
}

// Cause strips lifecycle annotations and returns the error a handler raised.
func Cause(err error) error {
	for {
		var le *LifecycleError
		if !errors.As(err, &le) || le.Err == nil {
			return err
		}
		err = le.Err
	}
}

// FromPanic converts a recovered panic value into an error.
func FromPanic(v any) error {
	switch val := v.(type) {
	case nil:
		return nil
	case error:
		return val
	default:
		return fmt.Errorf("%v", val)
	}
}
