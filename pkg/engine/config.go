package engine

import "github.com/rhuss/anreicher/pkg/api"

// Config holds configuration for the core engine.
type Config struct {
	// DefaultEngine is used when the request omits the engine field
	// (default: "ollama").
	DefaultEngine string

	// DefaultModel is used when the request omits the model field
	// (default: "mistral").
	DefaultModel string

	// DefaultTemplate is used when the request omits the template field.
	// Empty means such requests pass through without enrichment.
	DefaultTemplate string

	// Validation bounds request sizes.
	Validation api.ValidationConfig
}

func (c *Config) defaults() {
	if c.DefaultEngine == "" {
		c.DefaultEngine = "ollama"
	}
	if c.DefaultModel == "" {
		c.DefaultModel = "mistral"
	}
	if c.Validation.MaxPromptSize == 0 && c.Validation.MaxSystemSize == 0 {
		c.Validation = api.DefaultValidationConfig()
	}
}
