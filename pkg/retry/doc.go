// Package retry provides exponential backoff retry logic for transient failures.
//
// Do runs a function until it succeeds, the attempts are exhausted, the
// context is cancelled, or the function returns an error marked with
// NonRetryable (or rejected by Config.Retryable):
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return conn.Publish(subject, data)
//	})
//
// Presets: DefaultConfig (3 attempts, 100ms-5s) and Quick (10 attempts, 50ms-1s).
package retry
