// Package scheduler drives node handlers and finalizes their invocation
// contexts.
//
// # Invocation
//
// Invoke assigns the message an identity, opens a Context, pushes it on the
// node's active-context stack, runs the handler with the arguments its
// signature calls for, and pops the context when the synchronous call
// returns. A panic or returned error is treated as done(err). Legacy
// contexts still open at that point are finalized as an inferred success, so
// their completion time is the handler's return time regardless of any
// goroutines the handler started.
//
// Modern contexts stay open until done is called, from any goroutine, or
// until the node's timeout governor (WithNodeTimeout) or an external caller
// force-finalizes them through ForceFinalize.
//
// # Legacy correlation
//
// Legacy handlers emit through Node.Send. The send is attributed to the
// context on top of the node's active-context stack; with an empty stack (a
// callback firing after the handler returned) it is forwarded and recorded as
// uncorrelated. Attribution assumes a node's synchronous frames do not run in
// parallel, which the run loop guarantees. Re-entrant calls nest correctly.
//
// # Run loop
//
// Start runs a single goroutine that executes invocations queued by Submit
// and the completion and catch dispatch produced by finalized contexts. While
// it runs, no two handler calls overlap, so concurrent producers such as NATS
// subscriptions keep exact attribution. Stop drains what is queued.
//
// # Completion
//
// Every finalized context produces one CompletionEvent. Without a run loop it
// is passed to the Dispatcher before the finalizing call returns; with one it
// is queued for the loop.
package scheduler
