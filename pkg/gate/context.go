package gate

import (
	"context"
	"log/slog"
)

type tenantKey struct{}

// WithTenant stores the tenant serving the request.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantFromContext returns the tenant stored by the gate, if any.
func TenantFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	tenant, _ := ctx.Value(tenantKey{}).(string)
	return tenant
}

// LoggerExtractor returns a logger.ContextExtractor adding "tenant".
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if tenant := TenantFromContext(ctx); tenant != "" {
			return slog.String("tenant", tenant), true
		}
		return slog.Attr{}, false
	}
}
