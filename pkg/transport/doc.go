// Package transport defines the contract between the HTTP surface and the
// pipeline engine, plus the middleware chain wrapped around it.
//
// PipelineRunner is implemented by the engine. Middleware decorates a
// runner with cross-cutting behavior: panic recovery, request IDs and
// structured access logging via log/slog. The HTTP adapter in
// transport/http serializes runner results as JSON or SSE.
package transport
