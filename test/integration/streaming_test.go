package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestStreamingResponse(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/api/llm/stream", map[string]any{"prompt": "Hello streaming world"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	events := parseSSEEvents(t, resp)
	if len(events) < 3 {
		t.Fatalf("events = %+v", events)
	}

	var text strings.Builder
	for _, ev := range events[:len(events)-2] {
		if ev.Type != "chunk" {
			t.Fatalf("unexpected event before done: %+v", ev)
		}
		var chunk struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			t.Fatalf("decoding chunk %q: %v", ev.Data, err)
		}
		text.WriteString(chunk.Text)
	}
	if text.String() != "Generated response for: Hello streaming world" {
		t.Errorf("streamed text = %q", text.String())
	}

	done := events[len(events)-2]
	if done.Type != "done" {
		t.Errorf("second to last event = %+v, want done", done)
	}
	var payload struct {
		Done    bool  `json:"done"`
		Context []int `json:"context"`
	}
	if err := json.Unmarshal([]byte(done.Data), &payload); err != nil {
		t.Fatalf("decoding done: %v", err)
	}
	if !payload.Done || len(payload.Context) != 1 {
		t.Errorf("done payload = %+v", payload)
	}

	if last := events[len(events)-1]; last.Type != "" || last.Data != "[DONE]" {
		t.Errorf("last event = %+v, want data: [DONE]", last)
	}
}

func TestStreamingWithTemplate(t *testing.T) {
	before := testEnv.Backend.Count()
	resp := postJSON(t, testEnv.BaseURL()+"/api/llm/stream", map[string]any{
		"template": "campaign",
		"prompt":   "Notify the AI experts",
	})
	defer resp.Body.Close()

	events := parseSSEEvents(t, resp)
	if len(events) < 2 || events[len(events)-2].Type != "done" {
		t.Fatalf("events = %+v", events)
	}
	if calls := testEnv.Backend.Count() - before; calls != 3 {
		t.Errorf("backend calls = %d, want 3", calls)
	}
	reqs := testEnv.Backend.Requests()
	if final := reqs[len(reqs)-1]; !final.Stream || !strings.Contains(final.System, "Alice") {
		t.Errorf("final request = %+v", final)
	}
}

func TestStreamingBackendDown(t *testing.T) {
	resp := postJSON(t, testEnv.BaseURL()+"/api/llm/stream", map[string]any{
		"engine": "down",
		"prompt": "Hello",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 before the stream starts, got %d: %s", resp.StatusCode, readBody(t, resp))
	}
}

func TestCancelUnknownStream(t *testing.T) {
	resp := deleteURL(t, testEnv.BaseURL()+"/api/llm/stream/does-not-exist")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}
