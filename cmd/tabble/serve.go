package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/tabble/internal/api"
	"github.com/dmitrymomot/tabble/internal/config"
	"github.com/dmitrymomot/tabble/pkg/credentials"
	"github.com/dmitrymomot/tabble/pkg/gate"
	"github.com/dmitrymomot/tabble/pkg/httpserver"
	"github.com/dmitrymomot/tabble/pkg/logger"
	"github.com/dmitrymomot/tabble/pkg/ratelimiter"
	"github.com/dmitrymomot/tabble/pkg/registry"
	"github.com/dmitrymomot/tabble/pkg/sessionid"
	"github.com/dmitrymomot/tabble/pkg/tenantdb"
)

func newLogger(cfg config.Config) *slog.Logger {
	opts := []logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithOutput(os.Stderr),
		logger.WithRedactedKeys(gate.HeaderSecret, "password_hash"),
		logger.WithContextExtractors(
			api.RequestIDExtractor(),
			sessionid.LoggerExtractor(),
			gate.LoggerExtractor(),
		),
	}
	if level, ok := cfg.Level(); ok {
		opts = append(opts, logger.WithLevel(level))
	}
	return logger.New(opts...)
}

func serve(ctx context.Context, cfg config.Config) error {
	log := newLogger(cfg)
	logger.SetAsDefault(log)

	factory, err := tenantdb.NewFromConfig(ctx, cfg.Tenant, tenantdb.WithLogger(log))
	if err != nil {
		return err
	}
	store, err := credentials.NewFromConfig(ctx, cfg.Credentials, credentials.WithLogger(log))
	if err != nil {
		return errors.Join(err, shutdownFactory(factory))
	}
	reg := registry.New(factory, registry.WithConfig(cfg.Registry), registry.WithLogger(log))

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.MustRegister(reg.PrometheusCollectors()...)

	apiOpts := []api.Option{
		api.WithLogger(log),
		api.WithCORSOrigins(cfg.CORSOrigins...),
		api.WithMetrics(metrics),
		api.WithReadyTimeout(cfg.ReadyTimeout),
		api.WithReadinessChecks(
			httpserver.Check{Name: "registry", Fn: reg.Healthcheck()},
			httpserver.Check{Name: "credentials", Fn: store.Healthcheck()},
		),
	}
	stopHooks := []httpserver.Option{
		httpserver.WithStopHook(func(context.Context) error { return reg.Close() }),
		httpserver.WithStopHook(func(context.Context) error { return store.Close() }),
		httpserver.WithStopHook(func(context.Context) error { return shutdownFactory(factory) }),
	}
	if cfg.SwitchRate.Enabled() {
		attempts := ratelimiter.NewMemoryStore()
		limiter, err := ratelimiter.NewBucket(attempts, cfg.SwitchRate)
		if err != nil {
			return errors.Join(err, reg.Close(), store.Close(), shutdownFactory(factory))
		}
		apiOpts = append(apiOpts, api.WithSwitchLimiter(limiter))
		stopHooks = append(stopHooks, httpserver.WithStopHook(func(context.Context) error { return attempts.Close() }))
	}
	router := api.NewRouter(reg, store, apiOpts...)

	srv := httpserver.NewFromConfig(cfg.HTTP, append([]httpserver.Option{
		httpserver.WithLogger(log),
		// The default tenant is created and migrated before traffic arrives.
		httpserver.WithStartHook(func(ctx context.Context) error {
			conn, err := factory.Open(ctx, reg.DefaultTenant())
			if err != nil {
				return err
			}
			return factory.Close(conn)
		}),
	}, stopHooks...)...)

	log.InfoContext(ctx, "starting tabble",
		slog.String("version", version),
		slog.String("tenant_driver", cfg.Tenant.Driver),
		slog.String("credentials_backend", cfg.Credentials.Backend),
		logger.Tenant(reg.DefaultTenant()),
	)
	err = srv.Run(ctx, router)
	if errors.Is(err, httpserver.ErrStart) {
		// Stop hooks have not run when startup failed before serving.
		err = errors.Join(err, srv.Shutdown(context.WithoutCancel(ctx)))
	}
	return err
}

// shutdownFactory releases factory-wide resources such as the Postgres
// admin pool.
func shutdownFactory(f tenantdb.Factory) error {
	if s, ok := f.(interface{ Shutdown() }); ok {
		s.Shutdown()
	}
	return nil
}
