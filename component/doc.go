// Package component classifies node handlers and builds node instances.
//
// # Callback signatures
//
// A node handler is any Go function whose first parameter accepts a
// *message.Message. Its declared parameter count decides how it is driven:
//
//	func(msg *message.Message)                                    // Legacy
//	func(msg *message.Message, send SendFunc, done DoneFunc)      // Modern
//
// Either shape may also return an error, which is treated like a panic: the
// invocation fails with that error. Any other arity, including variadic
// functions, is classified Legacy and a signature-detection diagnostic is
// reported; the message is passed to the first parameter that can hold it and
// the remaining parameters receive zero values.
//
// Classification happens once in Adapt and is stored on the Adapter. It is
// never re-probed per call.
//
// Legacy handlers receive no send or done arguments. To emit messages they use
// an Emitter (the scheduler's per-node handle), captured when the node is built.
//
// # Node kinds
//
// Registry maps node kind names to factories, following the explicit
// registration pattern: each kind package exports a Register(*Registry) error
// function and main wires them all up front.
//
//	registry := component.NewRegistry()
//	if err := componentregistry.Register(registry); err != nil {
//		return err
//	}
//	adapter, err := registry.Create("passthrough", rawConfig, deps)
package component
