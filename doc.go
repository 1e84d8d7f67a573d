// Package semflow is a message lifecycle runtime for flow graphs of nodes.
//
// Nodes receive messages and hand results on. semflow tracks every
// invocation of a node on a message from the moment it is delivered until
// the node signals that it is finished, and then tells interested observers
// how it went: Complete observers hear about successes, Catch observers hear
// about failures in the nodes or flows they watch.
//
// # Handlers
//
// Two handler shapes are supported and told apart once, at registration:
//
//	func(msg *message.Message)                                   // single-parameter
//	func(msg *message.Message, send SendFunc, done DoneFunc)     // three-parameter
//
// A single-parameter handler is finished when it returns, and its sends are
// attributed to the message it was invoked with through an active-context
// stack. A three-parameter handler gets send and done bound to its own
// invocation, so it may finish later from any goroutine.
//
// # Architecture
//
//	┌────────────────────────────────────────────┐
//	│ cmd/semflow                                │  config, NATS, metrics,
//	│   ingress (NATS) ──► engine ──► egress     │  health, shutdown
//	└────────────────────────────────────────────┘
//	          ↓ deploys
//	┌────────────────────────────────────────────┐
//	│ engine          graph from config          │
//	│ scheduler       invoke, finalize, timeout  │
//	│ dispatch        Complete and Catch         │
//	│ invocation      per-invocation record      │
//	│ correlation     identity and trace         │
//	│ component       handler adapter, registry  │
//	└────────────────────────────────────────────┘
//	          ↓ forwards via
//	┌────────────────────────────────────────────┐
//	│ route           NATS publish, worker pool  │
//	└────────────────────────────────────────────┘
//
// # Packages
//
//   - message: the Message type and its identity
//   - correlation: assigns identities and traces sends to their origin
//   - component: handler classification, adapters and the node kind registry
//   - invocation: the per-(node, message) context with bound send and done
//   - scheduler: runs handlers, finalizes contexts and enforces node timeouts
//   - dispatch: routes completions and errors to Complete and Catch observers
//   - engine: deploys a configured graph onto the scheduler and dispatcher
//   - route: forwards sent messages over NATS, optionally through a worker pool
//   - processor/*, output/*: built-in node kinds
//   - config: YAML, TOML or JSON configuration with JSON Schema validation
//   - natsclient: the NATS connection with a publish circuit breaker
//   - metric, health: Prometheus metrics and the readiness probe
//   - errors: classified errors and lifecycle error kinds
//
// # Quick Start
//
//	registry := component.NewRegistry()
//	if err := componentregistry.Register(registry); err != nil {
//	    return err
//	}
//	eng, err := engine.New(registry, forwarder, engine.WithRuntime(cfg.Runtime))
//	if err != nil {
//	    return err
//	}
//	if err := eng.Deploy(cfg); err != nil {
//	    return err
//	}
//	ctx, err := eng.Invoke("ingest", message.NewWithPayload(42))
//
// See configs/semflow.yaml for a complete graph.
package semflow
