// Package gateway defines the capability every model backend exposes to the
// enrichment pipeline, and the factory that resolves engine identifiers to
// configured backends.
package gateway

import (
	"context"
	"time"

	"github.com/rhuss/anreicher/pkg/api"
)

// Gateway abstracts one LLM backend. The interface is capability-shaped:
// each adapter handles its own wire protocol internally.
//
// Implementations must be safe for concurrent use by multiple goroutines
// and must not keep per-request state.
type Gateway interface {
	// Name returns the engine identifier (e.g., "ollama").
	Name() string

	// Generate performs non-streaming generation.
	Generate(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error)

	// Stream performs streaming generation. The returned channel receives
	// text fragments in order and is closed after the final chunk (Done
	// set) or an error chunk. A stream cannot be restarted.
	Stream(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error)

	// ListModels returns the models the backend serves.
	ListModels(ctx context.Context) ([]api.ModelInfo, error)

	// Close releases backend resources (HTTP clients, connections).
	Close() error
}

// Endpoint is the static configuration of one backend.
type Endpoint struct {
	// Name is the engine identifier clients select (case-insensitive).
	Name string

	// Kind selects the adapter ("ollama", "openai").
	Kind string

	URL     string
	APIKey  string
	Timeout time.Duration
}

// Constructor builds a Gateway for an endpoint of a given kind.
type Constructor func(ep Endpoint) (Gateway, error)
