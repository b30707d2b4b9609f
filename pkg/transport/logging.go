package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/auth"
)

// Logging returns middleware that emits one structured log entry per
// pipeline call. For streams the entry marks the start of the stream,
// since the runner returns before the generation completes.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next PipelineRunner) PipelineRunner {
		return RunnerFuncs{
			Run: func(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
				start := time.Now()
				resp, err := next.RunPipeline(ctx, req)
				logCall(ctx, logger, "generate", req, start, err)
				return resp, err
			},
			Stream: func(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error) {
				start := time.Now()
				ch, err := next.RunPipelineStreaming(ctx, req)
				logCall(ctx, logger, "stream", req, start, err)
				return ch, err
			},
			Models: func(ctx context.Context, engine string) ([]api.ModelInfo, error) {
				models, err := next.ListModels(ctx, engine)
				if err != nil {
					logger.ErrorContext(ctx, "model listing failed",
						"request_id", RequestIDFromContext(ctx),
						"engine", engine,
						"error", err,
					)
				}
				return models, err
			},
		}
	}
}

func logCall(ctx context.Context, logger *slog.Logger, op string, req *api.ConversationRequest, start time.Time, err error) {
	attrs := []slog.Attr{
		slog.String("request_id", RequestIDFromContext(ctx)),
		slog.String("op", op),
		slog.Duration("duration", time.Since(start)),
	}
	if id := auth.IdentityFromContext(ctx); id != nil {
		attrs = append(attrs, slog.String("subject", id.Subject), slog.String("tier", id.Tier()))
	}
	if req != nil {
		attrs = append(attrs,
			slog.String("engine", req.Engine),
			slog.String("model", req.Model),
			slog.String("template", req.Template),
		)
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		logger.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
		return
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
}
