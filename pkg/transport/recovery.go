package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/rhuss/anreicher/pkg/api"
)

// Recovery returns middleware that converts panics in the runner into
// server errors. Panics inside a stream's producer goroutine are not
// covered.
func Recovery() Middleware {
	return func(next PipelineRunner) PipelineRunner {
		return RunnerFuncs{
			Run: func(ctx context.Context, req *api.ConversationRequest) (resp *api.ConversationResponse, err error) {
				defer recoverInto(ctx, &err)
				return next.RunPipeline(ctx, req)
			},
			Stream: func(ctx context.Context, req *api.ConversationRequest) (ch <-chan api.StreamChunk, err error) {
				defer recoverInto(ctx, &err)
				return next.RunPipelineStreaming(ctx, req)
			},
			Models: func(ctx context.Context, engine string) (models []api.ModelInfo, err error) {
				defer recoverInto(ctx, &err)
				return next.ListModels(ctx, engine)
			},
		}
	}
}

func recoverInto(ctx context.Context, err *error) {
	if r := recover(); r != nil {
		slog.Error("panic recovered",
			"request_id", RequestIDFromContext(ctx),
			"panic", r,
			"stack", string(debug.Stack()),
		)
		*err = api.NewServerError(fmt.Sprintf("internal server error: %v", r))
	}
}
