// Package config loads the runtime configuration of a semflow process.
//
// A configuration document may be written in JSON, YAML or TOML; Load picks
// the decoder from the file extension. Every format is normalized to JSON and
// checked against an embedded JSON schema before it is decoded into Config,
// so the same rules apply whatever the source encoding.
//
// After schema validation, SEMFLOW_* environment overrides and defaults are
// applied and Validate checks the cross references the schema cannot express:
// node ids are unique and subject-safe, observers name declared nodes, and
// flow parents form no cycle.
//
// # Basic Usage
//
//	cfg, err := config.Load("configs/semflow.yaml")
//	if err != nil {
//	    return err
//	}
//	for _, n := range cfg.Nodes {
//	    adapter, err := registry.Create(n.Kind, n.Config, deps)
//	    ...
//	}
//
// # Document Shape
//
//	log:       {level: info, format: json}
//	metrics:   {enabled: true, port: 9090, path: /metrics}
//	nats:      {url: nats://localhost:4222, prefix: semflow, retry: {max_attempts: 3}}
//	runtime:   {forward_workers: 4, forward_queue: 1024, max_catch_hops: 10, node_timeout: 30s}
//	flows:     [{id: main}, {id: sub, parent: main}]
//	nodes:     [{id: ingest, kind: passthrough, flow: main, timeout: 5s}]
//	observers: {complete: [{node: audit, targets: [ingest]}], catch: [{node: errors, scope: flow}]}
//
// Durations accept time.ParseDuration strings, a whole number of days ("14d"),
// or an integer number of nanoseconds.
package config
