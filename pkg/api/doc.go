// Package api defines the core data types shared by the anreicher
// prompt-enrichment gateway.
//
// The package performs no I/O. Its types describe what flows between the
// HTTP surface, the enrichment pipeline and the model backends:
//
//   - [ConversationRequest]: a generation request, mutated during enrichment
//   - [ConversationResponse]: generated text plus the continuation token
//   - [StreamChunk]: one fragment of a streamed generation
//   - [Event], [User]: records returned by the directory lookups
//   - [ModelInfo]: a model advertised by a backend
//   - [APIError]: structured error with type, code, param, and message
//
// Continuation tokens are opaque integer lists issued by backends that keep
// conversational state (Ollama's "context"). They are passed back unchanged.
package api
