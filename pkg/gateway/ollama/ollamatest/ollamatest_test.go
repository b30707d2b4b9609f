package ollamatest

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		req  GenerateRequest
		want map[string]any
	}{
		{
			name: "scope extraction",
			req:  GenerateRequest{Prompt: "List the scopes in: Notify AI and security folks. Put them in the json field 'scopes'."},
			want: map[string]any{"scopes": "AI, Security"},
		},
		{
			name: "event name",
			req:  GenerateRequest{Prompt: "Find the event in: invite people to the conference. Use the json field 'event_name'."},
			want: map[string]any{"event_name": "Tech of the Future"},
		},
		{
			name: "no event",
			req:  GenerateRequest{Prompt: "Find the event in: hello. Use the json field 'event_name'."},
			want: map[string]any{"event_name": ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]any
			if err := json.Unmarshal([]byte(Classify(tt.req).Response), &got); err != nil {
				t.Fatalf("response is not JSON: %v", err)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestClassifyTranslation(t *testing.T) {
	aux := Classify(GenerateRequest{System: "Translate into British English (en-GB).", Prompt: "Hallo"})
	if aux.Response != "Translated (en-GB): Hallo" {
		t.Errorf("translation reply = %q", aux.Response)
	}

	final := Classify(GenerateRequest{System: "the request translated into British English is: Translated (en-GB): Hallo", Prompt: "Hallo"})
	if final.Response != "Generated response for: Hallo" {
		t.Errorf("final reply = %q", final.Response)
	}
}

func TestTopicsIn(t *testing.T) {
	got := topicsIn("Notify AI researchers, WEB devs; said nothing about aid")
	if !slices.Equal(got, []string{"AI", "Web"}) {
		t.Errorf("topicsIn = %v, want [AI Web]", got)
	}
}
