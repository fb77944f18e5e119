// Package ratelimiter provides a token bucket limiter with an in-memory
// store and HTTP middleware.
//
// tabble uses it to slow down credential guessing on the tenant switch
// endpoint:
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//	limiter, err := ratelimiter.NewBucket(store, cfg.SwitchRate)
//	...
//	mw := ratelimiter.Middleware(limiter, ratelimiter.ByRemoteIP, log)
//
// Denied requests get a 429 JSON error with a Retry-After header.
package ratelimiter
