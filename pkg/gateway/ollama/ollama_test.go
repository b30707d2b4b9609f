package ollama

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/gateway"
	"github.com/rhuss/anreicher/pkg/gateway/ollama/ollamatest"
)

func newGateway(t *testing.T, url string) *Gateway {
	t.Helper()
	g, err := New(gateway.Endpoint{Name: "Ollama", Kind: "ollama", URL: url + "/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(gateway.Endpoint{Name: "ollama"}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestGenerate_SendsRequestAndReturnsContext(t *testing.T) {
	srv, h := ollamatest.NewServer(t, func(req ollamatest.GenerateRequest) ollamatest.Reply {
		return ollamatest.Reply{Response: "hi there"}
	})
	g := newGateway(t, srv.URL)

	if g.Name() != "ollama" {
		t.Errorf("Name() = %q, want ollama", g.Name())
	}

	resp, err := g.Generate(context.Background(), &api.ConversationRequest{
		Model:   "mistral",
		Prompt:  "hello",
		System:  "be brief",
		Format:  "json",
		Context: []int{7, 8},
		Options: map[string]any{"temperature": 0.1},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if resp.Response != "hi there" {
		t.Errorf("Response = %q, want %q", resp.Response, "hi there")
	}
	if want := []int{7, 8, 1}; !slices.Equal(resp.Context, want) {
		t.Errorf("Context = %v, want %v", resp.Context, want)
	}

	reqs := h.Requests()
	if len(reqs) != 1 {
		t.Fatalf("backend saw %d requests, want 1", len(reqs))
	}
	got := reqs[0]
	if got.Model != "mistral" || got.Prompt != "hello" || got.System != "be brief" || got.Format != "json" {
		t.Errorf("unexpected backend request: %+v", got)
	}
	if got.Stream {
		t.Error("Generate must send stream=false")
	}
	if !slices.Equal(got.Context, []int{7, 8}) {
		t.Errorf("backend Context = %v, want [7 8]", got.Context)
	}
}

func TestGenerate_HTTPErrorIsBackendError(t *testing.T) {
	srv, _ := ollamatest.NewServer(t, func(req ollamatest.GenerateRequest) ollamatest.Reply {
		return ollamatest.Reply{Status: http.StatusNotFound, Error: `model "nope" not found`}
	})
	g := newGateway(t, srv.URL)

	_, err := g.Generate(context.Background(), &api.ConversationRequest{Model: "nope", Prompt: "x"})
	if !errors.Is(err, api.ErrBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}

	var apiErr *api.APIError
	errors.As(err, &apiErr)
	if apiErr.Code != "404" {
		t.Errorf("Code = %q, want 404", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, `model "nope" not found`) {
		t.Errorf("Message = %q, want backend message", apiErr.Message)
	}
}

func TestGenerate_UnreachableIsBackendError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := newGateway(t, url)
	_, err := g.Generate(context.Background(), &api.ConversationRequest{Model: "m", Prompt: "x"})
	if !errors.Is(err, api.ErrBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestGenerate_CancelledContext(t *testing.T) {
	srv, _ := ollamatest.NewServer(t, func(req ollamatest.GenerateRequest) ollamatest.Reply {
		return ollamatest.Reply{Response: "late", Delay: 5 * time.Second}
	})
	g := newGateway(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := g.Generate(ctx, &api.ConversationRequest{Model: "m", Prompt: "x"})
	if !errors.Is(err, api.ErrCancelled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}

func TestStream_DeliversFragmentsInOrder(t *testing.T) {
	srv, h := ollamatest.NewServer(t, func(req ollamatest.GenerateRequest) ollamatest.Reply {
		return ollamatest.Reply{Response: "one two three"}
	})
	g := newGateway(t, srv.URL)

	ch, err := g.Stream(context.Background(), &api.ConversationRequest{Model: "m", Prompt: "count"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var text strings.Builder
	var last api.StreamChunk
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("unexpected error chunk: %v", chunk.Err)
		}
		text.WriteString(chunk.Text)
		last = chunk
	}

	if text.String() != "one two three" {
		t.Errorf("text = %q, want %q", text.String(), "one two three")
	}
	if !last.Done {
		t.Error("last chunk should be Done")
	}
	if !slices.Equal(last.Context, []int{1}) {
		t.Errorf("final Context = %v, want [1]", last.Context)
	}
	if !h.Requests()[0].Stream {
		t.Error("Stream must send stream=true")
	}
}

func TestStream_MalformedLinesSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"a","done":false}` + "\n"))
		w.Write([]byte("not json\n"))
		w.Write([]byte(`{"response":"b","done":true,"context":[4]}` + "\n"))
	}))
	defer srv.Close()
	g := newGateway(t, srv.URL)

	ch, err := g.Stream(context.Background(), &api.ConversationRequest{Model: "m", Prompt: "x"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var got []string
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("unexpected error chunk: %v", chunk.Err)
		}
		got = append(got, chunk.Text)
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("chunks = %v, want [a b]", got)
	}
}

func TestStream_TruncatedStreamEndsWithError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"a","done":false}` + "\n"))
	}))
	defer srv.Close()
	g := newGateway(t, srv.URL)

	ch, err := g.Stream(context.Background(), &api.ConversationRequest{Model: "m", Prompt: "x"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var last api.StreamChunk
	for chunk := range ch {
		last = chunk
	}
	if !errors.Is(last.Err, api.ErrBackend) {
		t.Fatalf("expected backend error as final chunk, got %+v", last)
	}
}

func TestStream_HTTPErrorBeforeStreaming(t *testing.T) {
	srv, _ := ollamatest.NewServer(t, func(req ollamatest.GenerateRequest) ollamatest.Reply {
		return ollamatest.Reply{Status: http.StatusInternalServerError, Error: "boom"}
	})
	g := newGateway(t, srv.URL)

	_, err := g.Stream(context.Background(), &api.ConversationRequest{Model: "m", Prompt: "x"})
	if !errors.Is(err, api.ErrBackend) {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	srv, _ := ollamatest.NewServer(t, nil)
	g := newGateway(t, srv.URL)

	models, err := g.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[0].ID != "mistral:latest" || models[0].Engine != "ollama" {
		t.Errorf("unexpected first model: %+v", models[0])
	}
	if models[0].ModifiedAt.IsZero() {
		t.Error("ModifiedAt should be parsed")
	}
}

func TestGenerate_ConcurrentCallsAreIndependent(t *testing.T) {
	srv, _ := ollamatest.NewServer(t, func(req ollamatest.GenerateRequest) ollamatest.Reply {
		return ollamatest.Reply{Response: "echo:" + req.Prompt}
	})
	g := newGateway(t, srv.URL)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			prompt := strings.Repeat("p", i+1)
			resp, err := g.Generate(context.Background(), &api.ConversationRequest{Model: "m", Prompt: prompt})
			if err != nil {
				errs <- err
				return
			}
			if resp.Response != "echo:"+prompt {
				errs <- errors.New("response crossed between requests: " + resp.Response)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
