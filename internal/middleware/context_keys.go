package middleware

import "context"

// contextKey is a private type for context keys to prevent collisions.
type contextKey string

const (
	loggerCtxKey     = contextKey("logger")
	correlationIDKey = contextKey("correlationID")
	staffRefKey      = contextKey("staffRef")
)

// GetCorrelationIDFromCtx retrieves the correlation id propagated from the
// triggering request. Empty if none was set.
func GetCorrelationIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey).(string); ok {
		return v
	}
	return ""
}

// WithCorrelationID stores a correlation id in the context. Used by the
// logging middleware and by non-HTTP callers such as the recovery job.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// GetStaffRefFromCtx retrieves the authenticated staff reference set by the
// auth middleware. The boolean reports whether one is present.
func GetStaffRefFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(staffRefKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
