// Package errors provides standardized error handling for semflow packages.
//
// # Error Classification
//
// Every error can be placed in one of three classes:
//
//   - Transient: temporary conditions such as a lost NATS connection (retry recommended)
//   - Invalid: malformed input, bad handlers, bad configuration (do not retry)
//   - Fatal: unrecoverable states (stop processing)
//
// # Error Wrapping Pattern
//
// All wrapping follows the format
//
//	"component.method: action failed: %w"
//
// and is produced by Wrap, WrapTransient, WrapInvalid and WrapFatal.
//
// # Lifecycle Errors
//
// Message-lifecycle tracking reports its own failure kinds through LifecycleError:
//
//	KindHandlerThrow              handler panicked or returned an error
//	KindDoneError                 handler called done(err)
//	KindDoubleFinalize            second finalize attempt on a context (discarded)
//	KindSignatureDetection        handler arity not recognized (defaults to Legacy)
//	KindDownstreamDelivery        an observer failed while being notified
//	KindTimeout                   an external governor force-finalized a context
//
// None of these kinds is fatal to the process; each is contained to a single
// message or context. Use KindOf to read the kind from any error chain:
//
//	if errors.KindOf(err) == errors.KindTimeout {
//	    // the node did not call done in time
//	}
package errors
