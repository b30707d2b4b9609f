// Package ollamatest provides a deterministic Ollama-compatible backend for
// tests, demos and the mock-backend command.
//
// The default responder recognises the auxiliary prompts of the built-in
// enrichers and answers them with well-formed JSON, so a whole enrichment
// pipeline can run against it without a real model.
package ollamatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// GenerateRequest is the body of POST /api/generate as received.
type GenerateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	System    string         `json:"system,omitempty"`
	Suffix    string         `json:"suffix,omitempty"`
	Format    string         `json:"format,omitempty"`
	Raw       bool           `json:"raw,omitempty"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Context   []int          `json:"context,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// Reply describes how the backend answers one request.
type Reply struct {
	Response string

	// Status, when non-zero and not 200, fails the request with Error as
	// the {"error": ...} body.
	Status int
	Error  string

	// Delay holds the response back. The handler returns early when the
	// client goes away.
	Delay time.Duration
}

// Responder computes the reply for a request.
type Responder func(req GenerateRequest) Reply

// Handler is an http.Handler serving /api/generate and /api/tags.
// It records every generate request it receives.
type Handler struct {
	responder Responder
	models    []string

	mu       sync.Mutex
	requests []GenerateRequest
}

// NewHandler returns a Handler using r, or Classify when r is nil.
func NewHandler(r Responder, models ...string) *Handler {
	if r == nil {
		r = Classify
	}
	if len(models) == 0 {
		models = []string{"mistral:latest", "llama3:latest"}
	}
	return &Handler{responder: r, models: models}
}

// NewServer starts an httptest server backed by a new Handler and closes
// it when the test ends.
func NewServer(t testing.TB, r Responder) (*httptest.Server, *Handler) {
	t.Helper()
	h := NewHandler(r)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, h
}

// Requests returns a copy of the generate requests received so far.
func (h *Handler) Requests() []GenerateRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.requests)
}

// Count returns the number of generate requests received so far.
func (h *Handler) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.requests)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/generate":
		h.handleGenerate(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/tags":
		h.handleTags(w)
	case r.Method == http.MethodGet && r.URL.Path == "/healthz":
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	h.mu.Lock()
	h.requests = append(h.requests, req)
	call := len(h.requests)
	h.mu.Unlock()

	reply := h.responder(req)

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if reply.Status != 0 && reply.Status != http.StatusOK {
		writeError(w, reply.Status, reply.Error)
		return
	}

	// The continuation token grows by one entry per call, so callers can
	// tell which call produced the token they hold.
	token := append(slices.Clone(req.Context), call)

	if req.Stream {
		writeStream(w, req.Model, reply.Response, token)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"model":      req.Model,
		"created_at": time.Now().UTC(),
		"response":   reply.Response,
		"done":       true,
		"context":    token,
	})
}

func writeStream(w http.ResponseWriter, model, text string, token []int) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	flusher, _ := w.(http.Flusher)

	enc := json.NewEncoder(w)
	for _, word := range strings.SplitAfter(text, " ") {
		if word == "" {
			continue
		}
		enc.Encode(map[string]any{"model": model, "response": word, "done": false})
		if flusher != nil {
			flusher.Flush()
		}
	}
	enc.Encode(map[string]any{"model": model, "response": "", "done": true, "context": token})
	if flusher != nil {
		flusher.Flush()
	}
}

func (h *Handler) handleTags(w http.ResponseWriter) {
	models := make([]map[string]any, 0, len(h.models))
	for _, m := range h.models {
		models = append(models, map[string]any{
			"name":        m,
			"model":       m,
			"modified_at": "2025-04-01T10:00:00Z",
			"size":        4109865159,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"models": models})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// --- Deterministic responder ---

// knownTopics are the topics Classify recognises in prompts.
var knownTopics = []string{"AI", "Web", "Database", "Security"}

// Classify is the default Responder. It inspects the request for the
// markers of the built-in enricher prompts and answers accordingly;
// anything else gets a plain generated text.
func Classify(req GenerateRequest) Reply {
	system := req.System
	prompt := req.Prompt

	switch {
	case strings.Contains(system, "'KeywordsContext'"):
		return jsonReply(map[string]any{
			"What":            "notify",
			"How":             "email",
			"Who":             strings.Join(topicsIn(prompt), ", "),
			"When":            "",
			"KeywordsContext": topicsIn(prompt),
		})

	case strings.Contains(prompt, "'scopes'"):
		return jsonReply(map[string]string{"scopes": strings.Join(topicsIn(prompt), ", ")})

	case strings.Contains(prompt, "'event_name'"):
		name := ""
		lower := strings.ToLower(prompt)
		if strings.Contains(lower, "conference") || strings.Contains(lower, "tech of the future") {
			name = "Tech of the Future"
		}
		return jsonReply(map[string]string{"event_name": name})

	case strings.Contains(system, "British English (en-GB)"):
		return Reply{Response: "Translated (en-GB): " + prompt}
	}

	text := fmt.Sprintf("Generated response for: %s", prompt)
	if req.Format == "json" {
		return jsonReply(map[string]string{"message": text})
	}
	return Reply{Response: text}
}

func topicsIn(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	found := []string{}
	for _, topic := range knownTopics {
		if slices.Contains(words, strings.ToLower(topic)) {
			found = append(found, topic)
		}
	}
	return found
}

func jsonReply(v any) Reply {
	data, _ := json.Marshal(v)
	return Reply{Response: string(data)}
}
