package logctx

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey string

const (
	loggerKey    ctxKey = "logger"
	sessionIDKey ctxKey = "session_id"
	ownerIDKey   ctxKey = "owner_id"
)

// WithSession stamps the session correlation fields onto the context so every
// component logging through FromCtx carries them.
func WithSession(ctx context.Context, sessionID, ownerID string) context.Context {
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	return context.WithValue(ctx, ownerIDKey, ownerID)
}

// FromCtx returns a logger from context if set, otherwise attempts to enrich
// base with session_id/owner_id from context values.
func FromCtx(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if ctx == nil {
		return base
	}
	if lg, ok := ctx.Value(loggerKey).(*zap.SugaredLogger); ok && lg != nil {
		return lg
	}
	var fields []interface{}
	if sid, ok := ctx.Value(sessionIDKey).(string); ok && sid != "" {
		fields = append(fields, "session_id", sid)
	}
	if oid, ok := ctx.Value(ownerIDKey).(string); ok && oid != "" {
		fields = append(fields, "owner_id", oid)
	}
	if len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}
