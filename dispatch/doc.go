// Package dispatch notifies observer nodes when an invocation context
// finalizes.
//
// Success events go to every Complete observer subscribed to the source node.
// Each observer gets its own clone of the message, keeping the originating
// identity, with a "complete" property naming the source node and context.
//
// Failures go to Catch observers. Resolution starts in the source node's flow:
// catches whose scope lists the node, plus whole-flow catches, match first;
// Uncaught catches in that flow receive the error only when nothing else did.
// With no match the search continues in the parent flow. Each delivery carries
// an "error" property:
//
//	{"message": "...", "source": {"id": "node"}, "timestamp": 1700000000000, "count": 1}
//
// count increases every time the same message is caught again; past
// MaxCatchHops the error is logged and dropped.
//
// Observers are delivered to one at a time through the Invoker. A failing or
// panicking observer is logged and skipped; it never affects the source
// context or the remaining observers.
package dispatch
