package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/anreicher/pkg/action"
	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/debug"
	"github.com/rhuss/anreicher/pkg/gateway"
	"github.com/rhuss/anreicher/pkg/observability"
	"github.com/rhuss/anreicher/pkg/pipeline"
	"github.com/rhuss/anreicher/pkg/transport"
)

// Engine runs enrichment pipelines. It holds no per-request state and is
// safe for concurrent use.
type Engine struct {
	gateways *gateway.Factory
	builder  *pipeline.Builder
	executor *pipeline.Executor
	actions  *action.Runner
	cfg      Config
}

// Ensure Engine implements transport.PipelineRunner at compile time.
var _ transport.PipelineRunner = (*Engine)(nil)

// New creates a new Engine. The action runner can be nil when no template
// names actions. Every template action and the default template are
// checked here so that misconfiguration fails at startup.
func New(gateways *gateway.Factory, builder *pipeline.Builder, actions *action.Runner, cfg Config) (*Engine, error) {
	if gateways == nil {
		return nil, errors.New("engine: gateway factory must not be nil")
	}
	if builder == nil {
		return nil, errors.New("engine: pipeline builder must not be nil")
	}
	cfg.defaults()

	var errs []error
	for _, t := range builder.Templates().All() {
		if len(t.Actions) == 0 {
			continue
		}
		if actions == nil {
			errs = append(errs, fmt.Errorf("template %q names actions but none are configured", t.Name))
			continue
		}
		if err := actions.Validate(t.Name, t.Actions); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.DefaultTemplate != "" {
		if _, ok := builder.Templates().Lookup(cfg.DefaultTemplate); !ok {
			errs = append(errs, api.NewTemplateNotFoundError(cfg.DefaultTemplate))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return &Engine{
		gateways: gateways,
		builder:  builder,
		executor: pipeline.NewExecutor(),
		actions:  actions,
		cfg:      cfg,
	}, nil
}

// run is a request resolved against the configuration, ready to execute.
type run struct {
	req      *api.ConversationRequest
	gw       gateway.Gateway
	template *pipeline.Template
}

// prepare applies defaults, validates the request and resolves its engine
// and template. It performs no I/O, so an unknown engine or template never
// reaches a backend.
func (e *Engine) prepare(req *api.ConversationRequest) (*run, error) {
	if req == nil {
		return nil, api.NewInvalidRequestError("", "request body is required")
	}
	r := req.Clone()
	if r.Engine == "" {
		r.Engine = e.cfg.DefaultEngine
	}
	if r.Model == "" {
		r.Model = e.cfg.DefaultModel
	}
	if r.Template == "" {
		r.Template = e.cfg.DefaultTemplate
	}
	if apiErr := api.ValidateRequest(r, e.cfg.Validation); apiErr != nil {
		return nil, apiErr
	}

	gw, err := e.gateways.Resolve(r.Engine)
	if err != nil {
		return nil, err
	}

	tmpl := &pipeline.Template{Cardinality: pipeline.CardinalitySingle}
	if r.Template != "" {
		tmpl, err = e.builder.Resolve(r.Template, gw)
		if err != nil {
			return nil, err
		}
	}
	if r.Format == "" && tmpl.OutputFormat == pipeline.OutputFormatJSON {
		r.Format = "json"
	}

	return &run{req: r, gw: gw, template: tmpl}, nil
}

// enrich runs the template's enrichers and returns the context holding the
// enriched request.
func (e *Engine) enrich(ctx context.Context, r *run) (*pipeline.PromptContext, error) {
	pc := pipeline.NewPromptContext(r.req)
	if err := e.executor.Run(ctx, pc, r.template.Enrichers); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, api.NewCancelledError("operation cancelled before final generation").WithCause(ctx.Err())
	}
	return pc, nil
}

// RunPipeline enriches the request, performs the final generation call
// and returns its formatted result. The returned continuation token is the
// final call's token, or the token of the last auxiliary call when the
// backend returned none.
func (e *Engine) RunPipeline(ctx context.Context, req *api.ConversationRequest) (resp *api.ConversationResponse, err error) {
	start := time.Now()
	templateLabel := templateName(req, e.cfg.DefaultTemplate)
	defer func() {
		observability.PipelineRunsTotal.WithLabelValues(templateLabel, observability.Status(err)).Inc()
		observability.PipelineDuration.WithLabelValues(templateLabel).Observe(time.Since(start).Seconds())
	}()

	r, err := e.prepare(req)
	if err != nil {
		return nil, err
	}
	runID := api.NewRunID()
	debug.Log("pipeline", "run started", "run_id", runID, "engine", r.gw.Name(), "model", r.req.Model, "template", r.template.Name)

	pc, err := e.enrich(ctx, r)
	if err != nil {
		return nil, err
	}

	final := pc.FinalRequest()
	debug.Raw("pipeline", final.System)

	out, err := r.gw.Generate(ctx, final)
	if err != nil {
		return nil, generationError(ctx, err)
	}

	token := out.Context
	if len(token) == 0 {
		token = pc.Continuation()
	}

	resp = &api.ConversationResponse{
		RunID:    runID,
		Engine:   r.gw.Name(),
		Model:    final.Model,
		Template: r.template.Name,
		Response: formatOutput(out.Response, r.template),
		Context:  token,
	}
	resp.Translation, _ = pipeline.Value[string](pc, pipeline.KeyTranslation)

	e.runActions(ctx, r, pc, resp)

	slog.Info("pipeline completed",
		"run_id", runID,
		"engine", resp.Engine,
		"template", resp.Template,
		"enrichers", len(r.template.Enrichers),
		"duration", time.Since(start),
	)
	return resp, nil
}

// RunPipelineStreaming enriches the request and streams the final
// generation. Enrichment runs before the method returns, so resolution,
// enrichment and cancellation failures are reported directly. The final
// chunk carries the continuation token as RunPipeline would return it.
// Output formatting and actions apply to complete responses only.
func (e *Engine) RunPipelineStreaming(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error) {
	start := time.Now()
	templateLabel := templateName(req, e.cfg.DefaultTemplate)
	fail := func(err error) (<-chan api.StreamChunk, error) {
		observability.PipelineRunsTotal.WithLabelValues(templateLabel, "error").Inc()
		return nil, err
	}

	r, err := e.prepare(req)
	if err != nil {
		return fail(err)
	}
	pc, err := e.enrich(ctx, r)
	if err != nil {
		return fail(err)
	}

	final := pc.FinalRequest()
	final.Stream = true
	upstream, err := r.gw.Stream(ctx, final)
	if err != nil {
		return fail(generationError(ctx, err))
	}

	out := make(chan api.StreamChunk)
	go func() {
		defer close(out)
		status := "error"
		defer func() {
			observability.PipelineRunsTotal.WithLabelValues(templateLabel, status).Inc()
			observability.PipelineDuration.WithLabelValues(templateLabel).Observe(time.Since(start).Seconds())
		}()

		for chunk := range upstream {
			if chunk.Done && chunk.Err == nil {
				if len(chunk.Context) == 0 {
					chunk.Context = pc.Continuation()
				}
				status = "ok"
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ListModels lists the models of one engine, or of every configured
// engine when engine is empty.
func (e *Engine) ListModels(ctx context.Context, engine string) ([]api.ModelInfo, error) {
	if engine != "" {
		gw, err := e.gateways.Resolve(engine)
		if err != nil {
			return nil, err
		}
		return listModels(ctx, gw)
	}
	return listAllModels(ctx, e.gateways)
}

func (e *Engine) runActions(ctx context.Context, r *run, pc *pipeline.PromptContext, resp *api.ConversationResponse) {
	if e.actions == nil || len(r.template.Actions) == 0 {
		return
	}
	scopes, _ := pipeline.Value[[]string](pc, pipeline.KeyExtractedScopes)
	users, _ := pipeline.Value[[]api.User](pc, pipeline.KeyEnrichedUsers)

	// Actions run after the response is final; a client disconnect must
	// not cut them short.
	e.actions.Run(context.WithoutCancel(ctx), r.template.Actions, action.Event{
		RunID:       resp.RunID,
		Template:    resp.Template,
		Engine:      resp.Engine,
		Model:       resp.Model,
		Prompt:      r.req.Prompt,
		Response:    resp.Response,
		Scopes:      scopes,
		Users:       users,
		Translation: resp.Translation,
		Timestamp:   time.Now().UTC(),
	})
}

// generationError classifies a failed final generation call.
func generationError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return api.NewCancelledError("operation cancelled during final generation").WithCause(err)
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return api.NewBackendError("final generation failed: " + err.Error()).WithCause(err)
}

// templateName is the metrics label of a request's template.
func templateName(req *api.ConversationRequest, fallback string) string {
	name := fallback
	if req != nil && req.Template != "" {
		name = req.Template
	}
	if name == "" {
		return "none"
	}
	return name
}
