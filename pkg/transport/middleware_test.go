package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/auth"
)

// recordingRunner captures the context of the last call.
type recordingRunner struct {
	ctx   context.Context
	err   error
	panic bool
}

func (r *recordingRunner) RunPipeline(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
	r.ctx = ctx
	if r.panic {
		panic("enricher exploded")
	}
	if r.err != nil {
		return nil, r.err
	}
	return &api.ConversationResponse{Response: "ok"}, nil
}

func (r *recordingRunner) RunPipelineStreaming(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error) {
	r.ctx = ctx
	if r.panic {
		panic("stream exploded")
	}
	ch := make(chan api.StreamChunk, 1)
	ch <- api.StreamChunk{Done: true}
	close(ch)
	return ch, r.err
}

func (r *recordingRunner) ListModels(ctx context.Context, engine string) ([]api.ModelInfo, error) {
	r.ctx = ctx
	if r.panic {
		panic("listing exploded")
	}
	return []api.ModelInfo{{ID: "mistral", Engine: engine}}, r.err
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next PipelineRunner) PipelineRunner {
			return RunnerFuncs{
				Run: func(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
					order = append(order, name)
					return next.RunPipeline(ctx, req)
				},
			}
		}
	}

	runner := Chain(mark("a"), mark("b"), mark("c"))(&recordingRunner{})
	if _, err := runner.RunPipeline(context.Background(), &api.ConversationRequest{}); err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if got := strings.Join(order, ","); got != "a,b,c" {
		t.Errorf("order = %s, want a,b,c", got)
	}
}

func TestRunnerFuncsNil(t *testing.T) {
	var f RunnerFuncs
	ctx := context.Background()
	if _, err := f.RunPipeline(ctx, nil); !errors.Is(err, &api.APIError{Type: api.ErrorTypeServerError}) {
		t.Errorf("RunPipeline err = %v", err)
	}
	if _, err := f.RunPipelineStreaming(ctx, nil); err == nil {
		t.Error("RunPipelineStreaming should fail")
	}
	if _, err := f.ListModels(ctx, ""); err == nil {
		t.Error("ListModels should fail")
	}
}

func TestRecovery(t *testing.T) {
	runner := Recovery()(&recordingRunner{panic: true})
	ctx := context.Background()

	_, err := runner.RunPipeline(ctx, &api.ConversationRequest{})
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeServerError {
		t.Fatalf("RunPipeline err = %v, want server error", err)
	}
	if !strings.Contains(apiErr.Message, "enricher exploded") {
		t.Errorf("message = %q", apiErr.Message)
	}

	if _, err := runner.RunPipelineStreaming(ctx, &api.ConversationRequest{}); err == nil {
		t.Error("RunPipelineStreaming should report the panic")
	}
	if _, err := runner.ListModels(ctx, ""); err == nil {
		t.Error("ListModels should report the panic")
	}
}

func TestRequestID(t *testing.T) {
	inner := &recordingRunner{}
	runner := RequestID()(inner)

	if _, err := runner.RunPipeline(context.Background(), &api.ConversationRequest{}); err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	generated := RequestIDFromContext(inner.ctx)
	if len(generated) != 36 {
		t.Errorf("generated request ID = %q, want a UUID", generated)
	}

	ctx := ContextWithRequestID(context.Background(), "client-id")
	if _, err := runner.ListModels(ctx, ""); err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if got := RequestIDFromContext(inner.ctx); got != "client-id" {
		t.Errorf("request ID = %q, want client-id", got)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	inner := &recordingRunner{}
	runner := Logging(logger)(inner)
	ctx := ContextWithRequestID(context.Background(), "req-42")
	req := &api.ConversationRequest{Engine: "ollama", Model: "mistral", Template: "campaign"}

	if _, err := runner.RunPipeline(ctx, req); err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"request completed"`, `"request_id":"req-42"`, `"template":"campaign"`, `"op":"generate"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}

	buf.Reset()
	authed := auth.SetIdentity(ctx, &auth.Identity{Subject: "alice", ServiceTier: "premium"})
	if _, err := runner.RunPipeline(authed, req); err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if !strings.Contains(buf.String(), `"subject":"alice"`) || !strings.Contains(buf.String(), `"tier":"premium"`) {
		t.Errorf("log output lacks caller identity: %s", buf.String())
	}

	buf.Reset()
	inner.err = api.NewBackendError("down")
	if _, err := runner.RunPipeline(ctx, req); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("failed request should log at ERROR: %s", buf.String())
	}

	buf.Reset()
	if _, err := runner.ListModels(ctx, "ollama"); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), "model listing failed") {
		t.Errorf("log output = %s", buf.String())
	}
}
