package openaicompat

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

// parseSSEStream reads Chat Completions SSE chunks from body and sends the
// text deltas on ch. The channel is NOT closed by this function; the caller
// is responsible for closing it.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	\n
//	data: [DONE]\n
//	\n
//
// Malformed chunks are logged and skipped.
func parseSSEStream(ctx context.Context, engine string, body io.Reader, ch chan<- api.StreamChunk) {
	scanner := bufio.NewScanner(body)
	done := false

	for scanner.Scan() {
		if ctx.Err() != nil {
			emit(ctx, ch, api.StreamChunk{Err: api.NewCancelledError(ctx.Err().Error())})
			return
		}

		line := scanner.Text()

		// Lines that don't start with "data: " are ignored
		// (e.g., empty lines, comments starting with ":").
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		payload := strings.TrimPrefix(line, "data: ")

		if payload == "[DONE]" {
			emit(ctx, ch, api.StreamChunk{Done: true})
			return
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Warn("skipping malformed SSE chunk",
				"engine", engine,
				"error", err.Error(),
				"data", debug.Truncate(payload, 200),
			)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.Delta.Content != nil && *choice.Delta.Content != "" {
			if !emit(ctx, ch, api.StreamChunk{Text: *choice.Delta.Content}) {
				return
			}
		}
		if choice.FinishReason != nil {
			done = true
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			emit(ctx, ch, api.StreamChunk{Err: api.NewCancelledError(ctx.Err().Error())})
			return
		}
		emit(ctx, ch, api.StreamChunk{Err: api.NewBackendError(engine + ": SSE stream read error: " + err.Error())})
		return
	}

	// Some servers close the connection after finish_reason without [DONE].
	if done {
		emit(ctx, ch, api.StreamChunk{Done: true})
		return
	}
	emit(ctx, ch, api.StreamChunk{Err: api.NewBackendError(engine + ": stream ended without completion")})
}

func emit(ctx context.Context, ch chan<- api.StreamChunk, chunk api.StreamChunk) bool {
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
