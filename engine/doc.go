// Package engine assembles a runnable lifecycle graph from configuration.
//
// An Engine owns one correlation tracker, one scheduler and one completion
// dispatcher wired to each other, plus the flow containment used for catch
// scopes. Deploy translates a config.Config into that graph:
//
//  1. flows are nested under their parents,
//  2. each node is built by its kind's factory from the component registry,
//     adapted, and registered with the scheduler (with its timeout),
//  3. complete and catch observers are subscribed.
//
// Deploying replaces the previous graph; open invocations of replaced nodes
// still finalize normally. A failed Deploy rolls back what it registered and
// leaves no graph deployed.
//
//	registry := component.NewRegistry()
//	_ = componentregistry.Register(registry)
//
//	eng, err := engine.New(registry, forwarder, engine.WithRuntime(cfg.Runtime))
//	if err != nil { ... }
//	if err := eng.Deploy(cfg); err != nil { ... }
//	ctx, err := eng.Invoke("ingest", msg)
package engine
