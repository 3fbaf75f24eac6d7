package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyDocHash   contextKey = "doc_hash"
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

// WithDocHash attaches the document fingerprint being processed.
func WithDocHash(ctx context.Context, hash string) context.Context {
	return context.WithValue(ctx, ContextKeyDocHash, hash)
}

func DocHashFromContext(ctx context.Context) string {
	if h, ok := ctx.Value(ContextKeyDocHash).(string); ok {
		return h
	}
	return ""
}
