// Package logger builds *slog.Logger values for the service.
//
// New takes functional options for format, level, static attributes and
// ContextExtractor callbacks. Extractors run on every record, which is how
// request-scoped values such as the session id or request id end up in the
// logs without being passed around explicitly:
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, cfg.Name),
//		logger.WithContextExtractors(sessionid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "tenant switched", logger.Tenant(name))
//
// The attribute helpers in this package (Error, SessionID, Tenant, ...) keep
// key names consistent and return an empty slog.Attr for empty values.
package logger
