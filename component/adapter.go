package component

import (
	"fmt"
	"reflect"

	"github.com/c360/semflow/errors"
	"github.com/c360/semflow/message"
)

// Adapter drives one node handler with the argument set its signature calls for.
// It is immutable after Adapt and safe for concurrent use.
type Adapter struct {
	signature   Signature
	diagnostic  error
	handlerType string

	legacy func(*message.Message) error
	modern func(*message.Message, SendFunc, DoneFunc) error
}

// Adapt classifies handler and prepares it for invocation. Handlers whose
// first parameter cannot hold a *message.Message, and Modern handlers whose
// send/done parameters cannot hold SendFunc/DoneFunc, are rejected.
func Adapt(handler any) (*Adapter, error) {
	if a := adaptKnown(handler); a != nil {
		return a, nil
	}

	v := reflect.ValueOf(handler)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %T is not a function", errors.ErrInvalidHandler, handler),
			"component", "Adapt", "handler kind check")
	}

	t := v.Type()
	a := &Adapter{signature: Classify(handler), handlerType: t.String()}

	if !exactArity(t) {
		a.diagnostic = errors.NewLifecycle(errors.KindSignatureDetection, "", "",
			fmt.Errorf("handler %s declares %d parameters (variadic=%t), want 1 or 3; treating as legacy",
				t, t.NumIn(), t.IsVariadic()))
		a.legacy = func(msg *message.Message) error {
			return resultError(v.Call(fallbackArgs(t, msg)))
		}
		return a, nil
	}

	if !messageType.AssignableTo(t.In(0)) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: first parameter of %s cannot hold %s", errors.ErrInvalidHandler, t, messageType),
			"component", "Adapt", "message parameter check")
	}

	if a.signature == Legacy {
		a.legacy = func(msg *message.Message) error {
			return resultError(v.Call([]reflect.Value{reflect.ValueOf(msg)}))
		}
		return a, nil
	}

	if !sendType.AssignableTo(t.In(1)) || !doneType.AssignableTo(t.In(2)) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s must accept (message, send, done)", errors.ErrInvalidHandler, t),
			"component", "Adapt", "callback parameter check")
	}
	a.modern = func(msg *message.Message, send SendFunc, done DoneFunc) error {
		return resultError(v.Call([]reflect.Value{reflect.ValueOf(msg), reflect.ValueOf(send), reflect.ValueOf(done)}))
	}
	return a, nil
}

// adaptKnown covers the canonical shapes without reflection
func adaptKnown(handler any) *Adapter {
	legacy := func(fn func(*message.Message) error, typ string) *Adapter {
		return &Adapter{signature: Legacy, handlerType: typ, legacy: fn}
	}
	modern := func(fn func(*message.Message, SendFunc, DoneFunc) error, typ string) *Adapter {
		return &Adapter{signature: Modern, handlerType: typ, modern: fn}
	}

	switch h := handler.(type) {
	case LegacyHandler:
		if h == nil {
			return nil
		}
		return legacy(func(m *message.Message) error { h(m); return nil }, "component.LegacyHandler")
	case func(*message.Message):
		if h == nil {
			return nil
		}
		return legacy(func(m *message.Message) error { h(m); return nil }, fmt.Sprintf("%T", h))
	case func(*message.Message) error:
		if h == nil {
			return nil
		}
		return legacy(h, fmt.Sprintf("%T", h))
	case ModernHandler:
		if h == nil {
			return nil
		}
		return modern(func(m *message.Message, s SendFunc, d DoneFunc) error { h(m, s, d); return nil },
			"component.ModernHandler")
	case func(*message.Message, SendFunc, DoneFunc):
		if h == nil {
			return nil
		}
		return modern(func(m *message.Message, s SendFunc, d DoneFunc) error { h(m, s, d); return nil },
			fmt.Sprintf("%T", h))
	case func(*message.Message, SendFunc, DoneFunc) error:
		if h == nil {
			return nil
		}
		return modern(h, fmt.Sprintf("%T", h))
	}
	return nil
}

// Signature returns the classification made at Adapt time
func (a *Adapter) Signature() Signature {
	return a.signature
}

// Diagnostic returns the signature-detection diagnostic, or nil when the
// handler had a recognized arity.
func (a *Adapter) Diagnostic() error {
	return a.diagnostic
}

// HandlerType returns the Go type of the adapted handler
func (a *Adapter) HandlerType() string {
	return a.handlerType
}

// Invoke calls the handler. Modern handlers receive send and done; Legacy
// handlers receive only msg and send/done are ignored. The handler's returned
// error, if any, is passed through. Panics are not recovered here.
func (a *Adapter) Invoke(msg *message.Message, send SendFunc, done DoneFunc) error {
	if a.signature == Modern {
		return a.modern(msg, send, done)
	}
	return a.legacy(msg)
}

// fallbackArgs builds arguments for an unrecognized arity: msg goes to the
// first parameter that can hold it, everything else is zero.
func fallbackArgs(t reflect.Type, msg *message.Message) []reflect.Value {
	fixed := t.NumIn()
	if t.IsVariadic() {
		fixed--
	}

	args := make([]reflect.Value, 0, t.NumIn())
	placed := false
	for i := 0; i < fixed; i++ {
		pt := t.In(i)
		if !placed && messageType.AssignableTo(pt) {
			args = append(args, reflect.ValueOf(msg))
			placed = true
			continue
		}
		args = append(args, reflect.Zero(pt))
	}
	if t.IsVariadic() && !placed && messageType.AssignableTo(t.In(t.NumIn()-1).Elem()) {
		args = append(args, reflect.ValueOf(msg))
	}
	return args
}

// resultError extracts a trailing error result, if the handler declares one
func resultError(out []reflect.Value) error {
	if len(out) == 0 {
		return nil
	}
	last := out[len(out)-1]
	if !last.Type().Implements(errorType) {
		return nil
	}
	switch last.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if last.IsNil() {
			return nil
		}
	}
	err, _ := last.Interface().(error)
	return err
}
