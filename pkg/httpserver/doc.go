// Package httpserver runs an http.Server with graceful shutdown.
//
// Run blocks until its context is cancelled, SIGINT or SIGTERM arrives, or
// Shutdown is called. Shutdown drains in-flight requests within the
// configured timeout and then runs the stop hooks registered with
// WithStopHook, which is where the session registry and tenant factories
// are closed:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP,
//		httpserver.WithLogger(log),
//		httpserver.WithStopHook(func(context.Context) error { return reg.Close() }),
//	)
//	if err := srv.Run(ctx, router); err != nil { ... }
//
// LivenessHandler and ReadinessHandler serve the /healthz and /readyz probes.
// Readiness checks are named so a failing dependency is visible in the
// response body.
package httpserver
