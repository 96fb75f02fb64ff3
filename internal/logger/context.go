package logger

import (
	"context"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped fields attached to every *Ctx log line.
type LogContext struct {
	RequestID string // HTTP request ID
	UserID    string // authenticated user, if any
	ClientIP  string // remote address without port
}

// WithContext returns a new context carrying the given LogContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}
	if lc.RequestID != "" {
		args = append(args, "request_id", lc.RequestID)
	}
	if lc.UserID != "" {
		args = append(args, "user_id", lc.UserID)
	}
	if lc.ClientIP != "" {
		args = append(args, "client_ip", lc.ClientIP)
	}
	return args
}
