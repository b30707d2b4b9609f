package openaicompat

import (
	"github.com/rhuss/anreicher/pkg/api"
)

// translate maps a ConversationRequest onto a Chat Completions request.
// The system text becomes a system message, the prompt a user message.
// Ollama-style option names are accepted alongside the OpenAI ones.
func translate(req *api.ConversationRequest, stream bool) chatRequest {
	cr := chatRequest{
		Model:  req.Model,
		Stream: stream,
	}

	if req.System != "" {
		cr.Messages = append(cr.Messages, chatMessage{Role: "system", Content: req.System})
	}
	cr.Messages = append(cr.Messages, chatMessage{Role: "user", Content: req.Prompt})

	if req.Format == "json" {
		cr.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	cr.Temperature = floatOption(req.Options, "temperature")
	cr.TopP = floatOption(req.Options, "top_p")
	cr.Seed = intOption(req.Options, "seed")
	if n := intOption(req.Options, "max_tokens"); n != nil {
		cr.MaxTokens = n
	} else {
		cr.MaxTokens = intOption(req.Options, "num_predict")
	}
	cr.Stop = stringsOption(req.Options, "stop")

	return cr
}

func floatOption(opts map[string]any, key string) *float64 {
	switch v := opts[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}

func intOption(opts map[string]any, key string) *int {
	switch v := opts[key].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		return &v
	}
	return nil
}

func stringsOption(opts map[string]any, key string) []string {
	switch v := opts[key].(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}
