package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/debug"
)

// maxLineSize allows for long final lines, which carry the full context token.
const maxLineSize = 4 * 1024 * 1024

// parseNDJSONStream reads Ollama's newline-delimited JSON stream and sends
// one StreamChunk per line on ch. The channel is NOT closed by this
// function; the caller is responsible for closing it.
//
// Malformed lines are logged and skipped. Context cancellation stops
// reading immediately and emits a cancellation chunk.
func parseNDJSONStream(ctx context.Context, engine string, body io.Reader, ch chan<- api.StreamChunk) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			send(ctx, ch, api.StreamChunk{Err: api.NewCancelledError(ctx.Err().Error())})
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var msg generateResponse
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			slog.Warn("skipping malformed stream line",
				"engine", engine,
				"error", err.Error(),
				"data", debug.Truncate(line, 200),
			)
			continue
		}

		if msg.Error != "" {
			send(ctx, ch, api.StreamChunk{Err: api.NewBackendError(engine + ": " + msg.Error)})
			return
		}

		chunk := api.StreamChunk{Text: msg.Response, Done: msg.Done}
		if msg.Done {
			chunk.Context = msg.Context
		}
		if !send(ctx, ch, chunk) {
			return
		}
		if msg.Done {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			send(ctx, ch, api.StreamChunk{Err: api.NewCancelledError(ctx.Err().Error())})
			return
		}
		send(ctx, ch, api.StreamChunk{Err: api.NewBackendError(engine + ": stream read error: " + err.Error())})
		return
	}

	// EOF without a done line: the backend went away mid-stream.
	send(ctx, ch, api.StreamChunk{Err: api.NewBackendError(engine + ": stream ended without completion")})
}

// send delivers chunk unless ctx is done first. Error chunks are delivered
// with a non-blocking fallback so a departed consumer never leaks the
// producer goroutine.
func send(ctx context.Context, ch chan<- api.StreamChunk, chunk api.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		if chunk.Err != nil {
			select {
			case ch <- chunk:
			default:
			}
		}
		return false
	}
}
