package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"queue full", ErrQueueFull, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"invalid data", ErrInvalidData, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid data", ErrInvalidData, true},
		{"invalid handler", ErrInvalidHandler, true},
		{"wrapped invalid config", fmt.Errorf("load: %w", ErrInvalidConfig), true},
		{"connection timeout", ErrConnectionTimeout, false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if result := IsInvalid(test.err); result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	if got := Classify(ErrResourceExhausted); got != ErrorFatal {
		t.Errorf("expected fatal, got %s", got)
	}
	if got := Classify(ErrInvalidHandler); got != ErrorInvalid {
		t.Errorf("expected invalid, got %s", got)
	}
	if got := Classify(errors.New("something odd")); got != ErrorTransient {
		t.Errorf("expected transient default, got %s", got)
	}
}

func TestWrapFunctions(t *testing.T) {
	original := errors.New("boom")

	wrapped := Wrap(original, "Scheduler", "Invoke", "handler call")
	if wrapped.Error() != "Scheduler.Invoke: handler call failed: boom" {
		t.Errorf("unexpected wrap format: %s", wrapped.Error())
	}
	if !errors.Is(wrapped, original) {
		t.Error("wrapped error should match original with errors.Is")
	}

	invalid := WrapInvalid(original, "Adapter", "Classify", "arity check")
	if !IsInvalid(invalid) {
		t.Error("WrapInvalid should produce an invalid error")
	}
	var ce *ClassifiedError
	if !errors.As(invalid, &ce) {
		t.Fatal("expected ClassifiedError")
	}
	if ce.Component != "Adapter" || ce.Operation != "Classify" {
		t.Errorf("unexpected component/operation: %s/%s", ce.Component, ce.Operation)
	}

	if !IsTransient(WrapTransient(original, "NATS", "Forward", "publish")) {
		t.Error("WrapTransient should produce a transient error")
	}
	if !IsFatal(WrapFatal(original, "Server", "Start", "listen")) {
		t.Error("WrapFatal should produce a fatal error")
	}

	if Wrap(nil, "a", "b", "c") != nil || WrapInvalid(nil, "a", "b", "c") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestLifecycleError(t *testing.T) {
	cause := errors.New("bad payload")
	err := NewLifecycle(KindDoneError, "node-1", "ctx-1", cause)

	if err.Error() != "bad payload" {
		t.Errorf("lifecycle error must keep the handler message, got %q", err.Error())
	}
	if KindOf(err) != KindDoneError {
		t.Errorf("expected done_error kind, got %s", KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("lifecycle error should unwrap to its cause")
	}
	if Cause(err) != cause {
		t.Error("Cause should strip the lifecycle annotation")
	}
	if NewLifecycle(KindTimeout, "n", "c", nil) != nil {
		t.Error("nil error should stay nil")
	}
	if KindOf(cause) != KindNone {
		t.Error("plain errors carry no kind")
	}
}

func TestKind_String(t *testing.T) {
	kinds := []Kind{
		KindHandlerThrow, KindDoneError, KindDoubleFinalize,
		KindSignatureDetection, KindDownstreamDelivery, KindTimeout,
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		if s == "none" || seen[s] {
			t.Errorf("kind %d has a bad or duplicate name %q", k, s)
		}
		seen[s] = true
	}
	if Kind(99).String() != "none" {
		t.Error("unknown kinds should print as none")
	}
}

func TestFromPanic(t *testing.T) {
	cause := errors.New("explicit")
	if FromPanic(cause) != cause {
		t.Error("error panics should be returned as-is")
	}
	if err := FromPanic("kaboom"); err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("string panics should become errors, got %v", err)
	}
	if FromPanic(nil) != nil {
		t.Error("nil panic value should yield nil")
	}
}
