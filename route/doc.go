// Package route delivers messages that nodes send. The lifecycle core never
// chooses destinations; it hands every outgoing message to a Forwarder along
// with the id of the node that sent it.
//
// Forwarders:
//
//   - Func adapts a plain function, mostly for tests and in-process wiring.
//   - Async queues messages on a worker pool so send never blocks on
//     downstream delivery. A full queue drops the message and returns a
//     transient error.
//   - NATS publishes JSON-encoded messages to <prefix>.out.<node>, retrying
//     transient publish failures with exponential backoff.
//
// SubscribeIngress is the inbound counterpart: it decodes messages published
// to <prefix>.in.<node> and passes them to a delivery function.
package route
