package response

import (
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/tabble/pkg/logger"
)

// HandlerFunc is an HTTP handler that returns its response instead of
// writing it. w is available for body decoding and headers only.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) Response

// Handle adapts h to http.HandlerFunc. A nil Response renders 204.
// Render failures are logged with log.
func Handle(log *slog.Logger, h HandlerFunc) http.HandlerFunc {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h(w, r)
		if resp == nil {
			resp = NoContent()
		}
		if err := resp.Render(w, r); err != nil {
			log.ErrorContext(r.Context(), "failed to render response", logger.Error(err))
		}
	}
}

// Error writes err as a JSON error response.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	_ = JSONError(err).Render(w, r)
}
