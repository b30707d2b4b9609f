package api

import "fmt"

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxPromptSize int
	MaxSystemSize int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxPromptSize: 1024 * 1024, // 1MB
		MaxSystemSize: 1024 * 1024,
	}
}

var validFormats = map[string]bool{
	"":     true,
	"text": true,
	"json": true,
}

// ValidateRequest checks a ConversationRequest after defaults have been
// applied. It returns an *APIError describing the first validation failure,
// or nil if the request is valid.
func ValidateRequest(req *ConversationRequest, cfg ValidationConfig) *APIError {
	if req.Model == "" {
		return NewInvalidRequestError("model", "model is required")
	}

	if req.Prompt == "" {
		return NewInvalidRequestError("prompt", "prompt is required")
	}

	if cfg.MaxPromptSize > 0 && len(req.Prompt) > cfg.MaxPromptSize {
		return NewInvalidRequestError("prompt",
			fmt.Sprintf("prompt exceeds maximum of %d bytes", cfg.MaxPromptSize))
	}

	if cfg.MaxSystemSize > 0 && len(req.System) > cfg.MaxSystemSize {
		return NewInvalidRequestError("system",
			fmt.Sprintf("system exceeds maximum of %d bytes", cfg.MaxSystemSize))
	}

	if !validFormats[req.Format] {
		return NewInvalidRequestError("format", "format must be 'text' or 'json'")
	}

	return nil
}
