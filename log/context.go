package log

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	requestFieldsKey
)

// WithRequestID returns a context that carries the request id and optional
// fields that ZContext attaches to every log line of the request.
func WithRequestID(ctx context.Context, id string, fields ...zap.Field) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, id)
	if len(fields) > 0 {
		ctx = context.WithValue(ctx, requestFieldsKey, fields)
	}
	return ctx
}

// WithNewRequestID is WithRequestID with a random id.
func WithNewRequestID(ctx context.Context, fields ...zap.Field) context.Context {
	return WithRequestID(ctx, uuid.NewString(), fields...)
}

// ExtractRequestID returns the request id stored in ctx.
func ExtractRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// ZContext is a zap field that logs the request id and fields stored in ctx.
func ZContext(ctx context.Context) zap.Field {
	return zap.Inline(&contextFields{ctx: ctx})
}
