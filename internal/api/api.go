// Package api wires the tabble HTTP surface: tenant selection endpoints,
// hotel settings, probes and metrics, behind the session and gate
// middleware.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/tabble/pkg/gate"
	"github.com/dmitrymomot/tabble/pkg/httpserver"
	"github.com/dmitrymomot/tabble/pkg/logger"
	"github.com/dmitrymomot/tabble/pkg/ratelimiter"
	"github.com/dmitrymomot/tabble/pkg/response"
	"github.com/dmitrymomot/tabble/pkg/sessionid"
	"github.com/dmitrymomot/tabble/pkg/tenantdb"
)

// Sessions is the session registry as seen by the handlers.
type Sessions interface {
	gate.Binder
	CurrentTenant(sessionID string) string
	Cleanup(ctx context.Context, sessionID string) error
	WithTx(ctx context.Context, sessionID string, fn func(tx *tenantdb.Tx) error) error
}

// Credentials verifies and lists tenants.
type Credentials interface {
	gate.Verifier
	List(ctx context.Context) ([]string, error)
}

type options struct {
	logger       *slog.Logger
	corsOrigins  []string
	metrics      *prometheus.Registry
	checks       []httpserver.Check
	readyTimeout time.Duration
	gateOpts     []gate.Option
	switchLimit  ratelimiter.Limiter
}

type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins. Defaults to "*".
func WithCORSOrigins(origins ...string) Option {
	return func(o *options) { o.corsOrigins = origins }
}

// WithMetrics instruments requests into reg and serves it on /metrics.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(o *options) { o.metrics = reg }
}

// WithReadinessChecks adds checks run by /readyz.
func WithReadinessChecks(checks ...httpserver.Check) Option {
	return func(o *options) { o.checks = append(o.checks, checks...) }
}

func WithReadyTimeout(d time.Duration) Option {
	return func(o *options) { o.readyTimeout = d }
}

// WithGateOptions forwards opts to the access gate.
func WithGateOptions(opts ...gate.Option) Option {
	return func(o *options) { o.gateOpts = append(o.gateOpts, opts...) }
}

// WithSwitchLimiter charges every credential check to l, keyed by client
// IP: POST /settings/switch-database and tenant credentials sent in gate
// headers share one budget.
func WithSwitchLimiter(l ratelimiter.Limiter) Option {
	return func(o *options) { o.switchLimit = l }
}

// NewRouter builds the HTTP handler of the service.
func NewRouter(sessions Sessions, creds Credentials, opts ...Option) http.Handler {
	o := &options{
		logger:       slog.New(slog.DiscardHandler),
		corsOrigins:  []string{"*"},
		readyTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	h := &handlers{
		sessions: sessions,
		creds:    creds,
		logger:   o.logger.With(logger.Component("api")),
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(o.logger),
		middleware.Recoverer,
	)
	if o.metrics != nil {
		r.Use(newRequestMetrics(o.metrics).middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   o.corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{sessionid.Header},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, response.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, response.ErrMethodNotAllowed)
	})

	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(o.logger, o.readyTimeout, o.checks...))
	if o.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(o.metrics, promhttp.HandlerOpts{Registry: o.metrics}))
	}

	gateOpts := append([]gate.Option{gate.WithLogger(o.logger)}, o.gateOpts...)
	var switchMW []func(http.Handler) http.Handler
	if o.switchLimit != nil {
		switchMW = append(switchMW, ratelimiter.Middleware(o.switchLimit, ratelimiter.ByRemoteIP, o.logger))
		gateOpts = append(gateOpts, gate.WithLimiter(o.switchLimit, ratelimiter.ByRemoteIP))
	}

	r.Group(func(r chi.Router) {
		r.Use(sessionid.Middleware, gate.Middleware(sessions, creds, gateOpts...))

		r.Get("/settings/databases", response.Handle(o.logger, h.listDatabases))
		r.Get("/settings/current-database", response.Handle(o.logger, h.currentDatabase))
		r.With(switchMW...).Post("/settings/switch-database", response.Handle(o.logger, h.switchDatabase))
		r.Delete("/settings/session", response.Handle(o.logger, h.endSession))

		r.Get("/settings/", response.Handle(o.logger, h.getSettings))
		r.Put("/settings/", response.Handle(o.logger, h.updateSettings))
	})

	return r
}

type handlers struct {
	sessions Sessions
	creds    Credentials
	logger   *slog.Logger
}
