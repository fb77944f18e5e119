package ratelimiter

import (
	"hash/fnv"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/tabble/pkg/logger"
	"github.com/dmitrymomot/tabble/pkg/response"
	"github.com/dmitrymomot/tabble/pkg/sessionid"
)

const maxKeyLength = 64

// KeyFunc extracts the rate limit key of a request. An empty key skips
// limiting for that request.
type KeyFunc func(r *http.Request) string

// ByRemoteIP keys on the client address without its port.
func ByRemoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// BySession keys on the session id stored by sessionid.Middleware.
func BySession(r *http.Request) string {
	return sessionid.FromContext(r.Context())
}

// Composite joins the non-empty keys of fns. Keys longer than 64 bytes are
// replaced by their FNV-1a hash.
func Composite(fns ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(fns))
		for _, fn := range fns {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		key := strings.Join(parts, ":")
		if len(key) <= maxKeyLength {
			return key
		}
		h := fnv.New64a()
		_, _ = h.Write([]byte(key))
		return strconv.FormatUint(h.Sum64(), 36)
	}
}

// SetHeaders writes the X-RateLimit-* headers of res, plus Retry-After when
// res was denied.
func SetHeaders(h http.Header, res Result, now time.Time) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if !res.Allowed() {
		retry := int(math.Ceil(res.RetryAfter(now).Seconds()))
		h.Set("Retry-After", strconv.Itoa(max(1, retry)))
	}
}

// Middleware rejects requests over the limit with a JSON 429 and sets the
// X-RateLimit-* headers. Limiter failures are logged and the request is let
// through.
func Middleware(l Limiter, key KeyFunc, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			res, err := l.Allow(r.Context(), k)
			if err != nil {
				log.ErrorContext(r.Context(), "rate limiter failed", logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			SetHeaders(w.Header(), res, time.Now())
			if !res.Allowed() {
				log.WarnContext(r.Context(), "rate limit exceeded", slog.String("key", k), slog.String("path", r.URL.Path))
				response.Error(w, r, response.ErrTooManyRequests.WithMessage("Too many attempts, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
