// Package enrich implements the built-in enrichers and registers them
// under their configuration names.
//
// Every enricher that consults the model does so through one helper that
// copies the request model, threads the run's continuation token into the
// auxiliary request, and keeps the token the backend returns. Auxiliary
// responses that cannot be parsed degrade to an empty contribution; only
// transport failures abort a run.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/debug"
	"github.com/rhuss/anreicher/pkg/directory"
	"github.com/rhuss/anreicher/pkg/gateway"
	"github.com/rhuss/anreicher/pkg/pipeline"
)

// Registry names of the built-in enrichers.
const (
	NameNormalizer     = "normalizer"
	NameScopeExtractor = "scope_extractor"
	NameEventMetadata  = "event_metadata"
	NameUserLookup     = "user_lookup"
	NameTranslator     = "translate_en_gb"
)

// ErrMalformedResponse marks an auxiliary response that could not be parsed.
var ErrMalformedResponse = errors.New("malformed auxiliary response")

// Deps are the lookups used by the directory-backed enrichers.
type Deps struct {
	Events directory.EventFinder
	Users  directory.UserFinder
}

// Register adds every built-in enricher to reg.
func Register(reg *pipeline.Registry, deps Deps) error {
	factories := []struct {
		name string
		f    pipeline.Factory
	}{
		{NameNormalizer, func(gw gateway.Gateway) (pipeline.Enricher, error) {
			return &Normalizer{gw: gw}, nil
		}},
		{NameScopeExtractor, func(gw gateway.Gateway) (pipeline.Enricher, error) {
			return &ScopeExtractor{gw: gw}, nil
		}},
		{NameEventMetadata, func(gw gateway.Gateway) (pipeline.Enricher, error) {
			if deps.Events == nil {
				return nil, fmt.Errorf("%s: no event directory configured", NameEventMetadata)
			}
			return &EventMetadata{gw: gw, events: deps.Events}, nil
		}},
		{NameUserLookup, func(gateway.Gateway) (pipeline.Enricher, error) {
			if deps.Users == nil {
				return nil, fmt.Errorf("%s: no user directory configured", NameUserLookup)
			}
			return &UserLookup{users: deps.Users}, nil
		}},
		{NameTranslator, func(gw gateway.Gateway) (pipeline.Enricher, error) {
			return &Translator{gw: gw}, nil
		}},
	}

	for _, e := range factories {
		if err := reg.Register(e.name, e.f); err != nil {
			return err
		}
	}
	return nil
}

// ask sends an auxiliary request built from aux. The model and the current
// continuation token come from pc; a non-empty token in the response
// replaces the run's token.
func ask(ctx context.Context, gw gateway.Gateway, pc *pipeline.PromptContext, enricher string, aux *api.ConversationRequest) (string, error) {
	aux.Model = pc.Model()
	aux.Context = pc.Continuation()

	debug.Log("enrich", "auxiliary call", "enricher", enricher, "model", aux.Model, "format", aux.Format)
	debug.Raw("enrich", aux.Prompt)

	resp, err := gw.Generate(ctx, aux)
	if err != nil {
		return "", err
	}
	if len(resp.Context) > 0 {
		pc.SetContinuation(resp.Context)
	}

	debug.Trace("enrich", "auxiliary response", "enricher", enricher, "response", debug.Truncate(resp.Response, 500))
	return resp.Response, nil
}

// decodeJSON unmarshals the JSON object in raw into v. Markdown code
// fences and text around the outermost braces are ignored.
func decodeJSON(raw string, v any) error {
	s := strings.TrimSpace(raw)
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return fmt.Errorf("%w: no JSON object in %q", ErrMalformedResponse, debug.Truncate(s, 80))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
