package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/gateway"
	"github.com/rhuss/anreicher/pkg/pipeline"
)

const normalizerSystem = `You turn a user's request into structured details. ` +
	`Answer with a JSON object only, using these fields: ` +
	`'What' is the action the user wants performed; ` +
	`'How' is the delivery channel, one of email, sms, whatsapp or pushNotifications; ` +
	`'Who' describes the intended audience; ` +
	`'When' is the requested timing, empty when none is given; ` +
	`'KeywordsContext' is a list of keywords describing the context of the request.`

// NormalizedSchema is the structured reading of a prompt.
type NormalizedSchema struct {
	What            string   `json:"What"`
	How             string   `json:"How"`
	Who             string   `json:"Who"`
	When            string   `json:"When"`
	KeywordsContext []string `json:"KeywordsContext"`
}

// Normalizer asks the model for a NormalizedSchema of the prompt and hands
// the parsed details to the final generation through the system text.
type Normalizer struct {
	gw gateway.Gateway
}

func (n *Normalizer) Name() string { return NameNormalizer }

func (n *Normalizer) Enrich(ctx context.Context, pc *pipeline.PromptContext) error {
	raw, err := ask(ctx, n.gw, pc, NameNormalizer, &api.ConversationRequest{
		System: normalizerSystem,
		Prompt: pc.Prompt(),
		Format: "json",
	})
	if err != nil {
		return err
	}

	var schema NormalizedSchema
	if err := decodeJSON(raw, &schema); err != nil {
		slog.Warn("normalizer response ignored", "error", err)
		pc.Set(pipeline.KeyNormalizedSchema, NormalizedSchema{})
		return nil
	}
	pc.Set(pipeline.KeyNormalizedSchema, schema)

	details, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encoding normalized schema: %w", err)
	}
	pc.AppendSystem(separator(pc) + "the structured details are " + string(details))
	return nil
}

// separator returns the blank line that precedes an appended section, or
// nothing when the system text is still empty.
func separator(pc *pipeline.PromptContext) string {
	if pc.Request().System == "" {
		return ""
	}
	return "\n\n"
}
