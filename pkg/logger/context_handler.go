package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor pulls a request-scoped attribute, such as the session id,
// out of a context.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// ContextHandler adds the attributes found by its extractors to each record
// before passing it on. An attribute logged explicitly wins over an
// extracted one with the same key, so a registry log line carrying
// tenant=south-branch is not shadowed by the gate's tenant=north-branch.
type ContextHandler struct {
	inner      slog.Handler
	extractors []ContextExtractor
}

// NewContextHandler wraps inner. Nil extractors are dropped.
func NewContextHandler(inner slog.Handler, extractors ...ContextExtractor) *ContextHandler {
	h := &ContextHandler{inner: inner}
	for _, ex := range extractors {
		if ex != nil {
			h.extractors = append(h.extractors, ex)
		}
	}
	return h
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if ctx != nil && len(h.extractors) > 0 {
		var present map[string]struct{}
		rec.Attrs(func(a slog.Attr) bool {
			if present == nil {
				present = make(map[string]struct{}, rec.NumAttrs())
			}
			present[a.Key] = struct{}{}
			return true
		})
		for _, ex := range h.extractors {
			attr, ok := ex(ctx)
			if !ok {
				continue
			}
			if _, dup := present[attr.Key]; dup {
				continue
			}
			rec.AddAttrs(attr)
		}
	}
	return h.inner.Handle(ctx, rec)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), extractors: h.extractors}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name), extractors: h.extractors}
}
