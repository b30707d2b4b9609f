package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/anreicher/pkg/api"
)

func TestExecutor_RunsInOrder(t *testing.T) {
	var j journal
	var enrichers []Enricher
	for _, n := range []string{"first", "second", "third"} {
		enrichers = append(enrichers, &funcEnricher{name: n, fn: func(context.Context, *PromptContext) error {
			time.Sleep(time.Millisecond)
			j.record(n)
			return nil
		}})
	}

	pc := NewPromptContext(&api.ConversationRequest{})
	if err := NewExecutor().Run(context.Background(), pc, enrichers); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := j.entries(); !slices.Equal(got, []string{"first", "second", "third"}) {
		t.Errorf("order = %v", got)
	}
}

func TestExecutor_LaterEnricherSeesEarlierWrites(t *testing.T) {
	var seen []string
	writer := &funcEnricher{name: "scopes", fn: func(_ context.Context, pc *PromptContext) error {
		pc.Set(KeyExtractedScopes, []string{"AI"})
		return nil
	}}
	reader := &funcEnricher{name: "users", fn: func(_ context.Context, pc *PromptContext) error {
		scopes, ok := Value[[]string](pc, KeyExtractedScopes)
		if !ok || scopes == nil {
			return errors.New("ExtractedScopes not visible")
		}
		seen = scopes
		return nil
	}}

	pc := NewPromptContext(&api.ConversationRequest{})
	if err := NewExecutor().Run(context.Background(), pc, []Enricher{writer, reader}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(seen, []string{"AI"}) {
		t.Errorf("reader saw %v", seen)
	}
}

func TestExecutor_EmptyListIsPassThrough(t *testing.T) {
	req := &api.ConversationRequest{Model: "m", Prompt: "p", System: "s", Context: []int{5}}
	pc := NewPromptContext(req)
	if err := NewExecutor().Run(context.Background(), pc, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	final := pc.FinalRequest()
	if final.System != "s" || final.Prompt != "p" || !slices.Equal(final.Context, []int{5}) {
		t.Errorf("pass-through changed the request: %+v", final)
	}
}

func TestExecutor_ErrorAbortsChain(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType api.ErrorType
	}{
		{"plain error becomes backend error", errors.New("connection refused"), api.ErrorTypeBackend},
		{"api error passes through", api.NewBackendError("ollama: 500"), api.ErrorTypeBackend},
		{"server error keeps its type", api.NewServerError("bug"), api.ErrorTypeServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var j journal
			enrichers := []Enricher{
				&funcEnricher{name: "ok", fn: func(context.Context, *PromptContext) error { j.record("ok"); return nil }},
				&funcEnricher{name: "fail", fn: func(context.Context, *PromptContext) error { j.record("fail"); return tt.err }},
				&funcEnricher{name: "never", fn: func(context.Context, *PromptContext) error { j.record("never"); return nil }},
			}

			err := NewExecutor().Run(context.Background(), NewPromptContext(&api.ConversationRequest{}), enrichers)

			var apiErr *api.APIError
			if !errors.As(err, &apiErr) || apiErr.Type != tt.wantType {
				t.Fatalf("error = %v, want type %s", err, tt.wantType)
			}
			if got := j.entries(); !slices.Equal(got, []string{"ok", "fail"}) {
				t.Errorf("ran %v, want [ok fail]", got)
			}
		})
	}
}

func TestExecutor_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var j journal
	enrichers := []Enricher{&funcEnricher{name: "a", fn: func(context.Context, *PromptContext) error { j.record("a"); return nil }}}

	err := NewExecutor().Run(ctx, NewPromptContext(&api.ConversationRequest{}), enrichers)
	if !errors.Is(err, api.ErrCancelled) {
		t.Fatalf("error = %v, want cancellation", err)
	}
	if len(j.entries()) != 0 {
		t.Errorf("enrichers ran after cancellation: %v", j.entries())
	}
}

func TestExecutor_CancelMidPipeline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inFlight := make(chan struct{})
	gw := &countingGateway{generate: func(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
		close(inFlight)
		<-ctx.Done()
		return nil, ctx.Err()
	}}

	var j journal
	enrichers := []Enricher{
		&funcEnricher{name: "aux", fn: func(ctx context.Context, pc *PromptContext) error {
			j.record("aux")
			_, err := gw.Generate(ctx, pc.Request())
			return err
		}},
		&funcEnricher{name: "next", fn: func(context.Context, *PromptContext) error { j.record("next"); return nil }},
	}

	go func() {
		<-inFlight
		cancel()
	}()

	err := NewExecutor().Run(ctx, NewPromptContext(&api.ConversationRequest{}), enrichers)
	if !errors.Is(err, api.ErrCancelled) {
		t.Fatalf("error = %v, want cancellation", err)
	}
	if got := j.entries(); !slices.Equal(got, []string{"aux"}) {
		t.Errorf("ran %v, want only [aux]", got)
	}
}

func TestExecutor_RecoversPanics(t *testing.T) {
	enrichers := []Enricher{&funcEnricher{name: "boom", fn: func(context.Context, *PromptContext) error {
		panic("nil map")
	}}}

	err := NewExecutor().Run(context.Background(), NewPromptContext(&api.ConversationRequest{}), enrichers)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Type != api.ErrorTypeServerError {
		t.Fatalf("error = %v, want server error", err)
	}
}

func TestExecutor_ConcurrentRunsAreIsolated(t *testing.T) {
	exec := NewExecutor()

	const runs = 20
	var wg sync.WaitGroup
	results := make([]int, runs)
	errs := make(chan error, runs)

	for i := range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pc := NewPromptContext(&api.ConversationRequest{Prompt: fmt.Sprint(i)})
			enrichers := []Enricher{
				&funcEnricher{name: "write", fn: func(_ context.Context, pc *PromptContext) error {
					pc.Set("X", i)
					time.Sleep(time.Millisecond)
					return nil
				}},
				&funcEnricher{name: "touch", fn: func(_ context.Context, pc *PromptContext) error {
					pc.AppendSystem(fmt.Sprint(i))
					return nil
				}},
			}
			if err := exec.Run(context.Background(), pc, enrichers); err != nil {
				errs <- err
				return
			}
			v, _ := Value[int](pc, "X")
			results[i] = v
			if pc.Request().System != fmt.Sprint(i) {
				errs <- fmt.Errorf("run %d saw system %q", i, pc.Request().System)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	for i, v := range results {
		if v != i {
			t.Errorf("run %d read X=%d", i, v)
		}
	}
}
