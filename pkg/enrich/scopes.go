package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/gateway"
	"github.com/rhuss/anreicher/pkg/pipeline"
)

// ScopeExtractor asks the model which scopes (topics) a prompt concerns.
// The result is always written, possibly empty.
type ScopeExtractor struct {
	gw gateway.Gateway
}

func (s *ScopeExtractor) Name() string { return NameScopeExtractor }

func (s *ScopeExtractor) Enrich(ctx context.Context, pc *pipeline.PromptContext) error {
	prompt := fmt.Sprintf("Extract the scopes from the prompt {%s}. "+
		"Return a comma-separated list in the json field 'scopes'.", pc.Prompt())

	raw, err := ask(ctx, s.gw, pc, NameScopeExtractor, &api.ConversationRequest{
		Prompt: prompt,
		Format: "json",
	})
	if err != nil {
		return err
	}

	scopes, err := parseScopes(raw)
	if err != nil {
		slog.Warn("scope extractor response ignored", "error", err)
		scopes = []string{}
	}
	pc.Set(pipeline.KeyExtractedScopes, scopes)

	if len(scopes) > 0 {
		pc.AppendSystem(separator(pc) + "the extracted scopes are " + strings.Join(scopes, ", "))
	}
	return nil
}

// parseScopes reads the 'scopes' field, given either as a comma-separated
// string or as a list of strings. Entries are trimmed and deduplicated
// ignoring case; the first spelling wins.
func parseScopes(raw string) ([]string, error) {
	var body struct {
		Scopes json.RawMessage `json:"scopes"`
	}
	if err := decodeJSON(raw, &body); err != nil {
		return nil, err
	}

	var parts []string
	var joined string
	switch {
	case len(body.Scopes) == 0 || string(body.Scopes) == "null":
		return nil, fmt.Errorf("%w: missing field 'scopes'", ErrMalformedResponse)
	case json.Unmarshal(body.Scopes, &joined) == nil:
		parts = strings.Split(joined, ",")
	case json.Unmarshal(body.Scopes, &parts) == nil:
	default:
		return nil, fmt.Errorf("%w: 'scopes' is neither a string nor a list", ErrMalformedResponse)
	}

	scopes := []string{}
	seen := make(map[string]bool)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true
		scopes = append(scopes, p)
	}
	return scopes, nil
}
