package pipeline

// Key names a PromptContext entry.
type Key string

// Keys written by the built-in enrichers.
const (
	// KeyNormalizedSchema holds the normalizer's structured reading of the
	// prompt. Written by "normalizer"; an empty schema when the auxiliary
	// response could not be parsed.
	KeyNormalizedSchema Key = "NormalizedSchema"

	// KeyExtractedScopes holds []string: trimmed, deduplicated scopes.
	// Written by "scope_extractor"; never nil once written. Read by
	// "user_lookup".
	KeyExtractedScopes Key = "ExtractedScopes"

	// KeyEventDetails holds *api.Event. Written by "event_metadata" only
	// when the event was found.
	KeyEventDetails Key = "EventDetails"

	// KeyEnrichedUsers holds []api.User. Written by "user_lookup" only when
	// at least one user matched.
	KeyEnrichedUsers Key = "EnrichedUsers"

	// KeyTranslation holds the translated prompt text. Written by
	// "translate_en_gb".
	KeyTranslation Key = "Translation"
)
