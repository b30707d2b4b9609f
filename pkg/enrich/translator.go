package enrich

import (
	"context"
	"strings"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/gateway"
	"github.com/rhuss/anreicher/pkg/pipeline"
)

const translatorSystem = "Translate the text the user sends you into British English (en-GB). " +
	"The text is a bill statement: keep amounts, dates and reference numbers exactly as written. " +
	"Answer with the translation only."

// Translator stores an en-GB translation of the prompt and hands it to the
// final generation through the system text.
type Translator struct {
	gw gateway.Gateway
}

func (t *Translator) Name() string { return NameTranslator }

func (t *Translator) Enrich(ctx context.Context, pc *pipeline.PromptContext) error {
	text, err := ask(ctx, t.gw, pc, NameTranslator, &api.ConversationRequest{
		System: translatorSystem,
		Prompt: pc.Prompt(),
	})
	if err != nil {
		return err
	}
	translation := strings.TrimSpace(text)
	pc.Set(pipeline.KeyTranslation, translation)
	if translation != "" {
		pc.AppendSystem(separator(pc) + "the request translated into British English is: " + translation)
	}
	return nil
}
