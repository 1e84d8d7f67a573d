// Package invocation implements the per-(node, inbound message) record of
// in-flight work.
//
// A Context starts Open and finalizes exactly once, to success or error.
// Every finalize path (Done, Fail, Infer, ForceFinalize) funnels through one
// mutex-guarded transition; whichever call wins emits the single
// CompletionEvent, synchronously, on its own goroutine. Later attempts are
// logged and discarded.
//
// Send records the outgoing message with the correlation tracker and hands it
// to the Forwarder. Sends after finalization are still forwarded, recorded as
// late and logged; they never reopen the context.
package invocation
