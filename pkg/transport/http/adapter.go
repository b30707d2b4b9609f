// Package http serves the pipeline runner over HTTP with JSON and SSE
// responses.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/auth"
	"github.com/rhuss/anreicher/pkg/observability"
	"github.com/rhuss/anreicher/pkg/transport"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

// Adapter routes HTTP requests to a PipelineRunner.
type Adapter struct {
	runner   transport.PipelineRunner
	inflight *transport.InFlightRegistry
	router   chi.Router
	config   Config

	apiMiddleware []func(http.Handler) http.Handler
	checks        []namedCheck
	metrics       http.Handler
}

type namedCheck struct {
	name  string
	check transport.HealthChecker
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize  int64
	ReadyTimeout time.Duration
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:  10 << 20, // 10 MB
		ReadyTimeout: 2 * time.Second,
	}
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithAPIMiddleware adds HTTP middleware, such as authentication, in front
// of the /api routes only.
func WithAPIMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(a *Adapter) { a.apiMiddleware = append(a.apiMiddleware, mw...) }
}

// WithHealthCheck adds a dependency probed by /readyz.
func WithHealthCheck(name string, check transport.HealthChecker) Option {
	return func(a *Adapter) { a.checks = append(a.checks, namedCheck{name, check}) }
}

// WithMetricsHandler replaces the /metrics handler. A nil handler removes
// the endpoint.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *Adapter) { a.metrics = h }
}

// NewAdapter creates an HTTP adapter. Middleware wraps the runner in the
// given order.
func NewAdapter(runner transport.PipelineRunner, cfg Config, middlewares []transport.Middleware, opts ...Option) *Adapter {
	if len(middlewares) > 0 {
		runner = transport.Chain(middlewares...)(runner)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultConfig().ReadyTimeout
	}

	a := &Adapter{
		runner:   runner,
		inflight: transport.NewInFlightRegistry(),
		config:   cfg,
		metrics:  promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(a)
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(observability.MetricsMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealth)
	r.Get("/readyz", a.handleReady)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}

	r.Route("/api/llm", func(r chi.Router) {
		r.Use(a.apiMiddleware...)
		r.Post("/generate", a.handleGenerate)
		r.Post("/stream", a.handleStream)
		r.Delete("/stream/{requestID}", a.handleCancelStream)
		r.Get("/models", a.handleModels)
	})

	a.router = r
	return a
}

// Handler returns the http.Handler for this adapter.
func (a *Adapter) Handler() http.Handler {
	return a.router
}

// requestIDMiddleware adopts the client's X-Request-ID or assigns a new
// one, and echoes it in the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = transport.NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

// generateResponse is the body of a successful POST /api/llm/generate.
type generateResponse struct {
	Status string                    `json:"status"`
	Result *api.ConversationResponse `json:"result"`
}

// handleGenerate handles POST /api/llm/generate. A request with stream set
// is served as SSE like POST /api/llm/stream.
func (a *Adapter) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Stream {
		a.stream(w, r, req)
		return
	}

	resp, err := a.runner.RunPipeline(r.Context(), req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Status: "Generated", Result: resp})
}

// handleStream handles POST /api/llm/stream.
func (a *Adapter) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeRequest(w, r)
	if !ok {
		return
	}
	a.stream(w, r, req)
}

// stream serves the generation as SSE. The stream is registered under the
// request ID and the caller's subject so that the same subject can cancel
// it with DELETE /api/llm/stream/{requestID}.
func (a *Adapter) stream(w http.ResponseWriter, r *http.Request, req *api.ConversationRequest) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	remove := a.inflight.Register(transport.RequestIDFromContext(ctx), subject(ctx), cancel)
	defer remove()

	chunks, err := a.runner.RunPipelineStreaming(ctx, req)
	if err != nil {
		transport.WriteError(w, err)
		return
	}

	sse := newSSEWriter(w)
	for chunk := range chunks {
		switch {
		case chunk.Err != nil:
			sse.fail(transport.AsAPIError(chunk.Err))
			drain(chunks)
			return
		case chunk.Done:
			sse.done(chunk.Context)
			drain(chunks)
			return
		default:
			if err := sse.chunk(chunk.Text); err != nil {
				// Client gone; stop the generation.
				cancel()
				drain(chunks)
				return
			}
		}
	}

	// The producer closed the channel without a final chunk.
	if ctx.Err() != nil {
		sse.fail(api.NewCancelledError("stream cancelled").WithCause(ctx.Err()))
		return
	}
	sse.fail(api.NewBackendError("stream ended without a final chunk"))
}

func drain(chunks <-chan api.StreamChunk) {
	for range chunks {
	}
}

// handleCancelStream handles DELETE /api/llm/stream/{requestID}.
func (a *Adapter) handleCancelStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	if !a.inflight.Cancel(id, subject(r.Context())) {
		transport.WriteError(w, api.NewNotFoundError(fmt.Sprintf("no running stream with request ID %q", id)))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// subject names the authenticated caller, or "" without authentication.
func subject(ctx context.Context) string {
	if id := auth.IdentityFromContext(ctx); id != nil {
		return id.Subject
	}
	return ""
}

// modelsResponse is the body of GET /api/llm/models.
type modelsResponse struct {
	Models []api.ModelInfo `json:"models"`
}

// handleModels handles GET /api/llm/models?engine=.
func (a *Adapter) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.runner.ListModels(r.Context(), r.URL.Query().Get("engine"))
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	if models == nil {
		models = []api.ModelInfo{}
	}
	writeJSON(w, http.StatusOK, modelsResponse{Models: models})
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady probes every registered dependency.
func (a *Adapter) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.config.ReadyTimeout)
	defer cancel()

	failed := map[string]string{}
	for _, c := range a.checks {
		if err := c.check.HealthCheck(ctx); err != nil {
			failed[c.name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// decodeRequest reads a JSON ConversationRequest, writing the error
// response itself when the body is unacceptable.
func (a *Adapter) decodeRequest(w http.ResponseWriter, r *http.Request) (*api.ConversationRequest, bool) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return nil, false
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.ConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return nil, false
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return nil, false
	}
	return &req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
