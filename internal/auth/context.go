package auth

import "context"

type contextKey struct{}

// Trigger sources recorded for a sweep.
const (
	SourceBearer    = "bearer"
	SourceTrusted   = "trusted_header"
	SourceScheduler = "scheduler"
	SourceCLI       = "cli"
)

// Caller identifies who started an operation.
type Caller struct {
	Source string
	Remote string
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}

// Source returns the caller's trigger source, or "unknown".
func Source(ctx context.Context) string {
	c, ok := FromContext(ctx)
	if !ok || c.Source == "" {
		return "unknown"
	}
	return c.Source
}
