package logtrace

import (
	"context"

	"github.com/tansive/moodleauth/internal/common/uuid"
)

type invocationIDKey struct{}

// WithInvocationID returns a context carrying the given invocation ID.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationIDKey{}, id)
}

// InvocationIDFromContext extracts the invocation ID from the context.
// Returns an empty string if the context is nil or carries no ID.
func InvocationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, ok := ctx.Value(invocationIDKey{}).(string)
	if !ok {
		return ""
	}
	return id
}

// InvocationID returns the ID carried by ctx or a new UUIDv7 string.
func InvocationID(ctx context.Context) string {
	if id := InvocationIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}
