// Package ollama implements the gateway for an Ollama server, using the
// native /api/generate endpoint so continuation tokens ("context") survive
// between calls.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/debug"
	"github.com/rhuss/anreicher/pkg/gateway"
)

// DefaultTimeout bounds a non-streaming generation. Local models are slow.
const DefaultTimeout = 5 * time.Minute

// Gateway talks to one Ollama server.
type Gateway struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// New creates a Gateway for the endpoint.
func New(ep gateway.Endpoint) (*Gateway, error) {
	if ep.URL == "" {
		return nil, fmt.Errorf("ollama: url is required")
	}

	timeout := ep.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	name := ep.Name
	if name == "" {
		name = "ollama"
	}

	return &Gateway{
		name:    strings.ToLower(name),
		baseURL: strings.TrimRight(ep.URL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Constructor adapts New to gateway.Constructor.
func Constructor(ep gateway.Endpoint) (gateway.Gateway, error) {
	return New(ep)
}

// Name returns the engine identifier.
func (g *Gateway) Name() string {
	return g.name
}

// Generate performs a non-streaming generation.
func (g *Gateway) Generate(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
	httpReq, err := g.newGenerateRequest(ctx, req, false)
	if err != nil {
		return nil, err
	}

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, gateway.MapNetworkError(ctx, g.name, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, gateway.MapHTTPError(g.name, httpResp)
	}

	var genResp generateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&genResp); err != nil {
		return nil, api.NewBackendError(fmt.Sprintf("%s: failed to parse backend response: %s", g.name, err.Error()))
	}
	if genResp.Error != "" {
		return nil, api.NewBackendError(g.name + ": " + genResp.Error)
	}

	debug.Trace("gateway", "ollama response",
		"model", genResp.Model,
		"response", genResp.Response,
		"context_len", len(genResp.Context),
	)

	return &api.ConversationResponse{
		Engine:   g.name,
		Model:    req.Model,
		Response: genResp.Response,
		Context:  genResp.Context,
	}, nil
}

// Stream performs a streaming generation. Ollama streams newline-delimited
// JSON objects; the last one has done=true and carries the context token.
//
// The HTTP client timeout is not applied for streaming requests. Lifecycle
// control relies on context cancellation instead.
func (g *Gateway) Stream(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error) {
	httpReq, err := g.newGenerateRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/x-ndjson")

	streamClient := &http.Client{
		Transport: g.httpClient.Transport,
	}

	httpResp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, gateway.MapNetworkError(ctx, g.name, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		httpResp.Body.Close()
		return nil, gateway.MapHTTPError(g.name, httpResp)
	}

	ch := make(chan api.StreamChunk, 16)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		parseNDJSONStream(ctx, g.name, httpResp.Body, ch)
	}()

	return ch, nil
}

// ListModels queries /api/tags.
func (g *Gateway) ListModels(ctx context.Context) ([]api.ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, gateway.MapNetworkError(ctx, g.name, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, gateway.MapHTTPError(g.name, httpResp)
	}

	var tags tagsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&tags); err != nil {
		return nil, api.NewBackendError(fmt.Sprintf("%s: failed to parse models response: %s", g.name, err.Error()))
	}

	models := make([]api.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		id := m.Name
		if id == "" {
			id = m.Model
		}
		models = append(models, api.ModelInfo{
			ID:         id,
			Engine:     g.name,
			Size:       m.Size,
			ModifiedAt: m.ModifiedAt,
		})
	}
	return models, nil
}

// Close releases client resources.
func (g *Gateway) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}

func (g *Gateway) newGenerateRequest(ctx context.Context, req *api.ConversationRequest, stream bool) (*http.Request, error) {
	body, err := json.Marshal(generateRequest{
		Model:     req.Model,
		Prompt:    req.Prompt,
		System:    req.System,
		Suffix:    req.Suffix,
		Format:    req.Format,
		Raw:       req.Raw,
		Stream:    stream,
		KeepAlive: req.KeepAlive,
		Context:   req.Context,
		Options:   req.Options,
	})
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	if debug.TraceIsEnabled("gateway") {
		debug.Raw("gateway", "POST "+g.baseURL+"/api/generate\n"+string(body))
	} else {
		debug.Log("gateway", "ollama request",
			"model", req.Model,
			"stream", stream,
			"format", req.Format,
			"system_len", len(req.System),
			"context_len", len(req.Context),
		)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}
