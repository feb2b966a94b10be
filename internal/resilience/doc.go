// Package resilience groups the fault tolerance used around shared backends.
//
// Subpackages:
//   - circuitbreaker: gobreaker wrappers for the rate limit store and the
//     entry database, so an outage fails fast instead of piling up requests
//   - retry: exponential backoff for startup connections
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.RateLimitStoreConfig())
//	store := circuitbreaker.WrapStore(redisStore, cb)
//
//	err := retry.WithBackoff(ctx, retry.DBStartupConfig(), func(ctx context.Context) error {
//	    return db.PingContext(ctx)
//	})
package resilience
