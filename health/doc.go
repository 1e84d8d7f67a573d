// Package health reports the readiness of a semflow process.
//
// A Checker holds named checks, each returning a Status. Run evaluates them
// and folds the results with Aggregate: any unhealthy part makes the process
// unhealthy, any degraded part makes it degraded. Handler exposes the result
// as JSON for load balancers and orchestrators, answering 503 when unhealthy.
//
//	checker := health.NewChecker("semflow")
//	checker.Register("nats", func(context.Context) health.Status {
//	    if client.IsHealthy() {
//	        return health.NewHealthy("nats", "connected")
//	    }
//	    return health.NewUnhealthy("nats", client.Status().String())
//	})
//	server.SetHealthHandler(checker.Handler())
//
// Messages built from errors should go through FromError or Sanitize so that
// server addresses and credentials never reach the probe output.
package health
