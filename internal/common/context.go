package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyOwnerID   contextKey = "owner_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithOwnerID adds the owner/session reference to the context
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ContextKeyOwnerID, ownerID)
}

// OwnerIDFromContext extracts the owner reference from context
func OwnerIDFromContext(ctx context.Context) string {
	if ownerID, ok := ctx.Value(ContextKeyOwnerID).(string); ok {
		return ownerID
	}
	return ""
}
