package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	runIDCtxKey  contextKey = "run_id"
	userIDCtxKey contextKey = "user_id"
)

// Attribute keys used in logs and events.
const (
	RunIDKey  = "run_id"
	UserIDKey = "user_id"
)

// WithRunID adds a run id to the context. If id is empty, a new UUID is generated.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, runIDCtxKey, id)
}

// RunIDFromContext extracts the run id from context.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(runIDCtxKey).(string); ok {
		return id
	}
	return ""
}

// WithUserID adds the authenticated account id to the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts the account id from context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(userIDCtxKey).(string); ok {
		return id
	}
	return ""
}
