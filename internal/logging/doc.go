// Package logging provides structured logging with OpenTelemetry integration.
//
// Logging wraps Zap with:
//   - a Trace level (-2, below Debug)
//   - dual output (stdout and the OpenTelemetry log bridge)
//   - automatic context fields (trace_id, span_id, request.id, user.id)
//   - secret redaction by field name and by value pattern
//   - per-level sampling that never drops errors
//
// # Usage
//
//	lc, err := logging.FromAppConfig(cfg)
//	logger, err := logging.NewLogger(lc, otelProvider)
//	defer logger.Sync()
//
//	ctx = logging.WithRequestID(ctx, "c1f0d6")
//	ctx = logging.WithUserID(ctx, claims.UserID)
//	logger.Info(ctx, "task created", zap.String("task.id", id))
//
// Services that only need a plain *zap.Logger receive logger.Underlying().
//
// # Testing
//
//	logger := logging.NewTestLogger()
//	// ... exercise code ...
//	logger.AssertLogged(t, zapcore.WarnLevel, "ownership mismatch")
//	logger.AssertNoSecrets(t)
package logging
