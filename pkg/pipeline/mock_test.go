package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rhuss/anreicher/pkg/api"
)

// countingGateway records how often it is called.
type countingGateway struct {
	calls    atomic.Int32
	generate func(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error)
}

func (g *countingGateway) Name() string { return "counting" }

func (g *countingGateway) Generate(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
	g.calls.Add(1)
	if g.generate != nil {
		return g.generate(ctx, req)
	}
	return &api.ConversationResponse{Response: "ok"}, nil
}

func (g *countingGateway) Stream(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error) {
	g.calls.Add(1)
	ch := make(chan api.StreamChunk)
	close(ch)
	return ch, nil
}

func (g *countingGateway) ListModels(context.Context) ([]api.ModelInfo, error) {
	g.calls.Add(1)
	return nil, nil
}

func (g *countingGateway) Close() error { return nil }

// funcEnricher adapts a function to Enricher.
type funcEnricher struct {
	name string
	fn   func(ctx context.Context, pc *PromptContext) error
}

func (f *funcEnricher) Name() string { return f.name }

func (f *funcEnricher) Enrich(ctx context.Context, pc *PromptContext) error {
	if f.fn == nil {
		return nil
	}
	return f.fn(ctx, pc)
}

// journal records the order in which enrichers ran.
type journal struct {
	mu    sync.Mutex
	names []string
}

func (j *journal) record(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.names = append(j.names, name)
}

func (j *journal) entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.names...)
}
