// Package correlation assigns message identities and ties every outgoing
// message to the invocation context that emitted it.
//
// A Tracker hands out identities on ingress (AssignIdentity) and produces a
// SendRecord for each send (RecordSend). Sequence numbers are owned by the
// context reference, start at 1 and increase strictly per context, so a handler
// that clones its input into several outputs yields records that share one
// origin identity and differ only by sequence.
//
// Sends that cannot be attributed to a context, such as a legacy node emitting
// from an asynchronous callback, are recorded with RecordUncorrelated and carry
// sequence 0.
//
// Records are kept in a bounded LRU index keyed by origin identity so that
// Trace can answer "what did this message cause" for recent messages.
package correlation
