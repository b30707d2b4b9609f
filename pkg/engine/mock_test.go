package engine

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rhuss/anreicher/pkg/action"
	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/directory/memory"
	"github.com/rhuss/anreicher/pkg/enrich"
	"github.com/rhuss/anreicher/pkg/gateway"
	"github.com/rhuss/anreicher/pkg/pipeline"
)

// fakeGateway is a scripted gateway that records every request.
type fakeGateway struct {
	name      string
	generate  func(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error)
	streamCtx []int
	models    []api.ModelInfo
	modelsErr error

	mu    sync.Mutex
	calls []*api.ConversationRequest
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) record(req *api.ConversationRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req.Clone())
}

func (g *fakeGateway) Calls() []*api.ConversationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*api.ConversationRequest(nil), g.calls...)
}

func (g *fakeGateway) Generate(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
	g.record(req)
	if g.generate != nil {
		return g.generate(ctx, req)
	}
	return &api.ConversationResponse{Response: "ok"}, nil
}

func (g *fakeGateway) Stream(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error) {
	g.record(req)
	ch := make(chan api.StreamChunk, 3)
	ch <- api.StreamChunk{Text: "streamed "}
	ch <- api.StreamChunk{Text: "text"}
	ch <- api.StreamChunk{Done: true, Context: g.streamCtx}
	close(ch)
	return ch, nil
}

func (g *fakeGateway) ListModels(ctx context.Context) ([]api.ModelInfo, error) {
	return g.models, g.modelsErr
}

func (g *fakeGateway) Close() error { return nil }

// fakeFactory serves the given gateways through a "fake" backend kind.
func fakeFactory(t *testing.T, gws ...*fakeGateway) *gateway.Factory {
	t.Helper()
	byName := map[string]*fakeGateway{}
	var endpoints []gateway.Endpoint
	for _, gw := range gws {
		byName[gw.name] = gw
		endpoints = append(endpoints, gateway.Endpoint{Name: gw.name, Kind: "fake"})
	}
	f, err := gateway.NewFactory(endpoints, map[string]gateway.Constructor{
		"fake": func(ep gateway.Endpoint) (gateway.Gateway, error) { return byName[ep.Name], nil },
	})
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	return f
}

// newBuilder registers the built-in enrichers over the seeded in-memory
// directory.
func newBuilder(t *testing.T, templates ...pipeline.TemplateConfig) *pipeline.Builder {
	t.Helper()
	dir := memory.NewSeeded()
	reg := pipeline.NewRegistry()
	if err := enrich.Register(reg, enrich.Deps{Events: dir, Users: dir}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	tr, err := pipeline.NewTemplateRegistry(templates)
	if err != nil {
		t.Fatalf("NewTemplateRegistry: %v", err)
	}
	b, err := pipeline.NewBuilder(tr, reg)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

// recordingAction remembers the events it receives.
type recordingAction struct {
	name string
	err  error

	mu     sync.Mutex
	events []action.Event
}

func (a *recordingAction) Name() string { return a.name }

func (a *recordingAction) Execute(ctx context.Context, ev action.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return a.err
}

func (a *recordingAction) Events() []action.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]action.Event(nil), a.events...)
}

func isNormalizerCall(req *api.ConversationRequest) bool {
	return strings.Contains(req.System, "'KeywordsContext'")
}
