// Package natsclient manages the NATS connection a semflow process uses for
// node ingress and egress.
//
// The client tracks its connection state, logs disconnects and reconnects, and
// wraps publishes with a circuit breaker: after a run of consecutive failures
// the breaker opens and Publish fails fast with a transient error until the
// backoff elapses. Errors are classified with the errors package so the route
// package's retry policy can tell transient failures apart.
//
//	client, err := natsclient.NewClient(cfg.NATS.URL,
//	    natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
//	    natsclient.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	fwd := route.NewNATS(client, cfg.NATS.Prefix)
package natsclient
