package enrich

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rhuss/anreicher/pkg/api"
)

// scriptedGateway answers Generate calls from a fixed list of replies and
// records every request it receives.
type scriptedGateway struct {
	mu       sync.Mutex
	replies  []*api.ConversationResponse
	err      error
	requests []*api.ConversationRequest
}

func (g *scriptedGateway) Name() string { return "scripted" }

func (g *scriptedGateway) Generate(_ context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req.Clone())
	if g.err != nil {
		return nil, g.err
	}
	if len(g.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r, nil
}

func (g *scriptedGateway) Stream(context.Context, *api.ConversationRequest) (<-chan api.StreamChunk, error) {
	return nil, errors.New("not scripted")
}

func (g *scriptedGateway) ListModels(context.Context) ([]api.ModelInfo, error) { return nil, nil }

func (g *scriptedGateway) Close() error { return nil }

func (g *scriptedGateway) calls() []*api.ConversationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.requests)
}

func reply(text string, token ...int) *api.ConversationResponse {
	return &api.ConversationResponse{Response: text, Context: token}
}

// stubDirectory serves fixed data and counts lookups.
type stubDirectory struct {
	mu         sync.Mutex
	event      *api.Event
	users      []api.User
	err        error
	eventNames []string
	topics     [][]string
}

func (d *stubDirectory) FindEventByName(_ context.Context, name string) (*api.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventNames = append(d.eventNames, name)
	return d.event, d.err
}

func (d *stubDirectory) FindUsersByTopics(_ context.Context, topics []string) ([]api.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.topics = append(d.topics, slices.Clone(topics))
	return d.users, d.err
}
