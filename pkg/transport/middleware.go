package transport

import "context"

// Middleware wraps a PipelineRunner to add cross-cutting behavior.
type Middleware func(PipelineRunner) PipelineRunner

// Chain composes middleware so that Chain(a, b, c) produces a(b(c(runner))):
// the first middleware is the outermost wrapper.
func Chain(middlewares ...Middleware) Middleware {
	return func(next PipelineRunner) PipelineRunner {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// RequestIDFromContext returns the request ID stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns a context carrying the request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
