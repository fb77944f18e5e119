package gate

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/tabble/pkg/ratelimiter"
)

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Option configures a Gate.
type Option func(*Gate)

// DefaultScopedPrefixes are path prefixes whose handlers need a tenant.
var DefaultScopedPrefixes = []string{
	"/settings/",
	"/customer/api/",
	"/chef/",
	"/admin/",
	"/analytics/",
	"/tables/",
	"/feedback/",
	"/loyalty/",
	"/selection-offers/",
}

// DefaultExemptPaths select, list or inspect the tenant themselves.
var DefaultExemptPaths = []string{
	"/settings/databases",
	"/settings/switch-database",
	"/settings/current-database",
	"/settings/session",
}

// DefaultExemptPrefixes handle tenant selection on their own.
var DefaultExemptPrefixes = []string{
	"/admin/",
	"/chef/",
}

// WithScopedPrefixes replaces the tenant-scoped path prefixes.
func WithScopedPrefixes(prefixes ...string) Option {
	return func(g *Gate) { g.scoped = prefixes }
}

// WithExemptPaths replaces the exact paths that skip the check.
func WithExemptPaths(paths ...string) Option {
	return func(g *Gate) {
		g.exempt = make(map[string]struct{}, len(paths))
		for _, p := range paths {
			g.exempt[p] = struct{}{}
		}
	}
}

// WithExemptPrefixes replaces the path prefixes that skip the check.
func WithExemptPrefixes(prefixes ...string) Option {
	return func(g *Gate) { g.exemptPrefixes = prefixes }
}

// WithLimiter charges every credential check made from request headers to
// l under the key returned by key. A nil key defaults to the client IP.
func WithLimiter(l ratelimiter.Limiter, key ratelimiter.KeyFunc) Option {
	return func(g *Gate) {
		if key == nil {
			key = ratelimiter.ByRemoteIP
		}
		g.limiter, g.limitKey = l, key
	}
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(g *Gate) {
		if h != nil {
			g.errorHandler = h
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}
