// Package openaicompat implements the gateway for backends speaking the
// OpenAI Chat Completions protocol (vLLM, LiteLLM, llama.cpp server, ...).
// These backends keep no conversation state, so responses never carry a
// continuation token.
package openaicompat

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

// DefaultTimeout bounds a non-streaming completion.
const DefaultTimeout = 120 * time.Second

// Client performs HTTP requests against an OpenAI-compatible backend.
type Client struct {
	name       string
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates a Client for the endpoint.
func New(ep gateway.Endpoint) (*Client, error) {
	if ep.URL == "" {
		return nil, fmt.Errorf("openai: url is required")
	}

	timeout := ep.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	name := ep.Name
	if name == "" {
		name = "openai"
	}

	return &Client{
		name: strings.ToLower(name),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(ep.URL, "/"),
		apiKey:  ep.APIKey,
	}, nil
}

// Constructor adapts New to gateway.Constructor.
func Constructor(ep gateway.Endpoint) (gateway.Gateway, error) {
	return New(ep)
}

// Name returns the engine identifier.
func (c *Client) Name() string {
	return c.name
}

// Generate performs non-streaming inference against the Chat Completions endpoint.
func (c *Client) Generate(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
	httpReq, err := c.newChatRequest(ctx, req, false)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, gateway.MapNetworkError(ctx, c.name, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, gateway.MapHTTPError(c.name, httpResp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		return nil, api.NewBackendError(fmt.Sprintf("%s: failed to parse backend response: %s", c.name, err.Error()))
	}
	if len(chatResp.Choices) == 0 {
		return nil, api.NewBackendError(c.name + ": backend returned no choices")
	}

	return &api.ConversationResponse{
		Engine:   c.name,
		Model:    req.Model,
		Response: chatResp.Choices[0].Message.Content,
	}, nil
}

// Stream performs streaming inference against the Chat Completions endpoint.
//
// The HTTP client timeout is not applied for streaming requests because a
// stream can legitimately last longer than any fixed timeout. Lifecycle
// control relies on context cancellation instead.
func (c *Client) Stream(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error) {
	httpReq, err := c.newChatRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	streamClient := &http.Client{
		Transport: c.httpClient.Transport,
	}

	httpResp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, gateway.MapNetworkError(ctx, c.name, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		httpResp.Body.Close()
		return nil, gateway.MapHTTPError(c.name, httpResp)
	}

	ch := make(chan api.StreamChunk, 16)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		parseSSEStream(ctx, c.name, httpResp.Body, ch)
	}()

	return ch, nil
}

// ListModels queries the /v1/models endpoint.
func (c *Client) ListModels(ctx context.Context) ([]api.ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	c.authorize(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, gateway.MapNetworkError(ctx, c.name, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, gateway.MapHTTPError(c.name, httpResp)
	}

	var modelsResp modelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, api.NewBackendError(fmt.Sprintf("%s: failed to parse models response: %s", c.name, err.Error()))
	}

	models := make([]api.ModelInfo, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		info := api.ModelInfo{ID: m.ID, Engine: c.name}
		if m.Created > 0 {
			info.ModifiedAt = time.Unix(m.Created, 0).UTC()
		}
		models = append(models, info)
	}
	return models, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) newChatRequest(ctx context.Context, req *api.ConversationRequest, stream bool) (*http.Request, error) {
	body, err := json.Marshal(translate(req, stream))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	url := c.baseURL + "/v1/chat/completions"
	if debug.TraceIsEnabled("gateway") {
		debug.Raw("gateway", "POST "+url+"\n"+string(body))
	} else {
		debug.Log("gateway", "chat completions request", "model", req.Model, "stream", stream)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)
	return httpReq, nil
}

func (c *Client) authorize(r *http.Request) {
	if c.apiKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
