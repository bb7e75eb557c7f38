package eventing

import "context"

type contextKey string

const contextKeyCycle contextKey = "eventing.cycle_id"

// WithCycleID attaches the reconciliation cycle id to ctx.
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, contextKeyCycle, cycleID)
}

// CycleIDFromContext returns the cycle id set by WithCycleID.
func CycleIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(contextKeyCycle).(string)
	return value
}

// MetaFromContext derives envelope metadata from ctx.
func MetaFromContext(ctx context.Context) Meta {
	return Meta{CorrelationID: CycleIDFromContext(ctx)}
}
