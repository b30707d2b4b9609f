package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/directory"
	"github.com/rhuss/anreicher/pkg/gateway"
	"github.com/rhuss/anreicher/pkg/pipeline"
)

// EventDateLayout is the date format of the event block.
const EventDateLayout = "January 02, 2006"

// EventMetadata asks the model which event a prompt mentions, looks it up
// and describes it in the system text.
type EventMetadata struct {
	gw     gateway.Gateway
	events directory.EventFinder
}

func (e *EventMetadata) Name() string { return NameEventMetadata }

func (e *EventMetadata) Enrich(ctx context.Context, pc *pipeline.PromptContext) error {
	prompt := fmt.Sprintf("Identify the event mentioned in the text {%s}. "+
		"Return its name in the json field 'event_name', or an empty string if there is none.", pc.Prompt())

	raw, err := ask(ctx, e.gw, pc, NameEventMetadata, &api.ConversationRequest{
		Prompt: prompt,
		Format: "json",
	})
	if err != nil {
		return err
	}

	var body struct {
		EventName string `json:"event_name"`
	}
	if err := decodeJSON(raw, &body); err != nil {
		slog.Warn("event metadata response ignored", "error", err)
		return nil
	}
	name := strings.TrimSpace(body.EventName)
	if name == "" {
		slog.Info("no event mentioned in prompt")
		return nil
	}

	event, err := e.events.FindEventByName(ctx, name)
	if err != nil {
		return fmt.Errorf("looking up event %q: %w", name, err)
	}
	if event == nil {
		slog.Info("event not found", "event", name)
		return nil
	}

	pc.Set(pipeline.KeyEventDetails, event)
	pc.AppendSystem(formatEvent(event))
	return nil
}

func formatEvent(e *api.Event) string {
	var b strings.Builder
	b.WriteString("\n\n### Event Details:\n")
	fmt.Fprintf(&b, "- Name: %s\n", e.Name)
	fmt.Fprintf(&b, "- Location: %s\n", e.Location)
	fmt.Fprintf(&b, "- Date: %s\n", e.Date.Format(EventDateLayout))
	fmt.Fprintf(&b, "- Description: %s", e.Description)
	return b.String()
}
