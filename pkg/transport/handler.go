package transport

import (
	"context"

	"github.com/rhuss/anreicher/pkg/api"
)

// PipelineRunner runs enrichment pipelines and lists backend models.
type PipelineRunner interface {
	// RunPipeline enriches the request and returns the complete generation.
	RunPipeline(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error)

	// RunPipelineStreaming enriches the request and streams the final
	// generation. Errors before the first chunk are returned directly;
	// later failures arrive as a chunk with Err set.
	RunPipelineStreaming(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error)

	// ListModels lists one engine's models, or all of them when engine
	// is empty.
	ListModels(ctx context.Context, engine string) ([]api.ModelInfo, error)
}

// RunnerFuncs adapts plain functions to a PipelineRunner. A nil function
// reports a server error.
type RunnerFuncs struct {
	Run    func(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error)
	Stream func(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error)
	Models func(ctx context.Context, engine string) ([]api.ModelInfo, error)
}

var _ PipelineRunner = RunnerFuncs{}

// RunPipeline calls f.Run.
func (f RunnerFuncs) RunPipeline(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
	if f.Run == nil {
		return nil, api.NewServerError("generation is not available")
	}
	return f.Run(ctx, req)
}

// RunPipelineStreaming calls f.Stream.
func (f RunnerFuncs) RunPipelineStreaming(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error) {
	if f.Stream == nil {
		return nil, api.NewServerError("streaming is not available")
	}
	return f.Stream(ctx, req)
}

// ListModels calls f.Models.
func (f RunnerFuncs) ListModels(ctx context.Context, engine string) ([]api.ModelInfo, error) {
	if f.Models == nil {
		return nil, api.NewServerError("model listing is not available")
	}
	return f.Models(ctx, engine)
}

// HealthChecker reports whether a dependency is ready to serve.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a function to a HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// HealthCheck calls f(ctx).
func (f HealthCheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
