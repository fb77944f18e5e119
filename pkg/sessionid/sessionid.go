package sessionid

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const (
	// Header carries the session id in both directions.
	Header = "X-Session-ID"

	maxIDLength = 128
)

var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type contextKey struct{}

// Valid reports whether id is acceptable as a client-supplied session id.
func Valid(id string) bool {
	if len(id) == 0 || len(id) > maxIDLength {
		return false
	}
	return validID.MatchString(id)
}

// New mints a random session id.
func New() string {
	return uuid.New().String()
}

// Resolve returns the session id supplied in the request header. When the
// header is absent or malformed a fresh id is minted and minted is true.
func Resolve(r *http.Request) (id string, minted bool) {
	if id = r.Header.Get(Header); Valid(id) {
		return id, false
	}
	return New(), true
}

func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// Middleware resolves the session id, stores it in the request context and
// echoes it back in the response header so the client can reuse it.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := FromContext(r.Context())
		if id == "" {
			id, _ = Resolve(r)
		}
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
	})
}

// LoggerExtractor returns a logger.ContextExtractor adding "session_id".
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id := FromContext(ctx); id != "" {
			return slog.String("session_id", id), true
		}
		return slog.Attr{}, false
	}
}
