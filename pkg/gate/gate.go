package gate

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/tabble/pkg/credentials"
	"github.com/dmitrymomot/tabble/pkg/logger"
	"github.com/dmitrymomot/tabble/pkg/ratelimiter"
	"github.com/dmitrymomot/tabble/pkg/registry"
	"github.com/dmitrymomot/tabble/pkg/response"
	"github.com/dmitrymomot/tabble/pkg/sessionid"
)

// Headers carrying tenant credentials on tenant-scoped requests.
const (
	HeaderTenant = "X-Database-Name"
	HeaderSecret = "X-Database-Password"
)

// Binder is the part of the session registry the gate relies on.
type Binder interface {
	Lookup(sessionID string) (tenant string, bound bool)
	DefaultTenant() string
	Switch(ctx context.Context, sessionID, tenant string) (bool, error)
}

// Verifier checks tenant credentials.
type Verifier interface {
	Verify(ctx context.Context, tenant, secret string) error
}

// Gate makes sure tenant-scoped requests run against a tenant the session
// selected. Sessions without a selection, or still on the default tenant,
// must present credentials in the X-Database-Name and X-Database-Password
// headers; valid credentials bind the session before the handler runs.
type Gate struct {
	binder   Binder
	verifier Verifier

	scoped         []string
	exempt         map[string]struct{}
	exemptPrefixes []string

	limiter  ratelimiter.Limiter
	limitKey ratelimiter.KeyFunc

	errorHandler ErrorHandler
	logger       *slog.Logger
}

func New(binder Binder, verifier Verifier, opts ...Option) *Gate {
	g := &Gate{
		binder:         binder,
		verifier:       verifier,
		scoped:         DefaultScopedPrefixes,
		exemptPrefixes: DefaultExemptPrefixes,
		errorHandler:   defaultErrorHandler,
		logger:         slog.New(slog.DiscardHandler),
	}
	WithExemptPaths(DefaultExemptPaths...)(g)
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(logger.Component("gate"))
	return g
}

// Middleware is shorthand for New(binder, verifier, opts...).Middleware.
func Middleware(binder Binder, verifier Verifier, opts ...Option) func(http.Handler) http.Handler {
	return New(binder, verifier, opts...).Middleware
}

// Requires reports whether requests to path need a selected tenant.
func (g *Gate) Requires(path string) bool {
	if _, ok := g.exempt[path]; ok {
		return false
	}
	if hasAnyPrefix(path, g.exemptPrefixes) {
		return false
	}
	return hasAnyPrefix(path, g.scoped)
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		id := sessionid.FromContext(ctx)
		if id == "" {
			id, _ = sessionid.Resolve(r)
			ctx = sessionid.WithContext(ctx, id)
		}
		w.Header().Set(sessionid.Header, id)

		var tenant string
		if g.Requires(r.URL.Path) {
			var err error
			if tenant, err = g.ensureTenant(w, r.WithContext(ctx), id); err != nil {
				g.logger.WarnContext(ctx, "tenant-scoped request rejected",
					logger.SessionID(id),
					slog.String("path", r.URL.Path),
					logger.Error(err),
				)
				g.errorHandler(w, r.WithContext(ctx), err)
				return
			}
		} else {
			tenant, _ = g.binder.Lookup(id)
		}

		next.ServeHTTP(w, r.WithContext(WithTenant(ctx, tenant)))
	})
}

// ensureTenant returns the tenant of the session, binding the one named in
// the request headers when the session has none of its own yet.
// Credentials are verified before the registry is touched, and only after
// the limiter, if any, admitted the attempt.
func (g *Gate) ensureTenant(w http.ResponseWriter, r *http.Request, id string) (string, error) {
	ctx := r.Context()
	if tenant, bound := g.binder.Lookup(id); bound && tenant != g.binder.DefaultTenant() {
		return tenant, nil
	}

	name, secret := strings.TrimSpace(r.Header.Get(HeaderTenant)), r.Header.Get(HeaderSecret)
	if name == "" || secret == "" {
		return "", ErrNoTenantSelected
	}

	if err := g.allowAttempt(w, r); err != nil {
		return "", err
	}
	if err := g.verifier.Verify(ctx, name, secret); err != nil {
		return "", err
	}
	if _, err := g.binder.Switch(ctx, id, name); err != nil {
		return "", err
	}

	g.logger.InfoContext(ctx, "session bound from request credentials", logger.SessionID(id), logger.Tenant(name))
	return name, nil
}

// allowAttempt charges one credential attempt to the request's limiter key.
// Limiter failures let the attempt through.
func (g *Gate) allowAttempt(w http.ResponseWriter, r *http.Request) error {
	if g.limiter == nil {
		return nil
	}
	key := g.limitKey(r)
	if key == "" {
		return nil
	}

	res, err := g.limiter.Allow(r.Context(), key)
	if err != nil {
		g.logger.ErrorContext(r.Context(), "rate limiter failed", logger.Error(err))
		return nil
	}
	ratelimiter.SetHeaders(w.Header(), res, time.Now())
	if !res.Allowed() {
		return ErrTooManyAttempts
	}
	return nil
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	response.Error(w, r, Classify(err))
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

var (
	_ Binder   = (*registry.Registry)(nil)
	_ Verifier = (*credentials.Store)(nil)
)
