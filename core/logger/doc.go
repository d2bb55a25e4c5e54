// Package logger builds slog loggers and provides attribute helpers shared
// across the relay.
//
// Loggers are created with functional options:
//
//	log := logger.New(
//		logger.WithProduction("relay"),
//		logger.WithLevel(logger.ParseLevel("debug")),
//		logger.WithContextExtractors(logger.AttrsFromContext),
//	)
//
//	ctx = logger.ContextWithAttrs(ctx, logger.ConnectionID(id))
//	log.InfoContext(ctx, "joined", logger.Room("lobby"))
//
// Attribute helpers return an empty slog.Attr for zero input, which slog
// drops, so optional values need no guarding:
//
//	log.Error("push failed", logger.Error(err), logger.Component("metrics"))
package logger
