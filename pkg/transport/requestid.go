package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/rhuss/anreicher/pkg/api"
)

// RequestID returns middleware that makes sure every call carries a request
// ID. An ID already in the context (set by the HTTP adapter from the
// X-Request-ID header) is kept; otherwise a new UUID is assigned.
func RequestID() Middleware {
	return func(next PipelineRunner) PipelineRunner {
		return RunnerFuncs{
			Run: func(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
				return next.RunPipeline(ensureRequestID(ctx), req)
			},
			Stream: func(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error) {
				return next.RunPipelineStreaming(ensureRequestID(ctx), req)
			},
			Models: func(ctx context.Context, engine string) ([]api.ModelInfo, error) {
				return next.ListModels(ensureRequestID(ctx), engine)
			},
		}
	}
}

func ensureRequestID(ctx context.Context) context.Context {
	if RequestIDFromContext(ctx) != "" {
		return ctx
	}
	return ContextWithRequestID(ctx, NewRequestID())
}

// NewRequestID returns a fresh request ID.
func NewRequestID() string {
	return uuid.NewString()
}
