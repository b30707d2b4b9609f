package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rhuss/anreicher/pkg/api"
)

// SSE event names.
const (
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

// ChunkData is the payload of a chunk event.
type ChunkData struct {
	Text string `json:"text"`
}

// DoneData is the payload of the done event.
type DoneData struct {
	Done    bool  `json:"done"`
	Context []int `json:"context,omitempty"`
}

// ErrorData is the payload of the error event.
type ErrorData struct {
	Error *api.APIError `json:"error"`
}

// sseWriter writes one generation as server-sent events:
//
//	event: {name}\n
//	data: {json}\n
//	\n
//
// A done or error event ends the stream and is followed by data: [DONE].
type sseWriter struct {
	w        http.ResponseWriter
	rc       *http.ResponseController
	started  bool
	finished bool
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

func (s *sseWriter) chunk(text string) error {
	return s.write(EventChunk, ChunkData{Text: text})
}

func (s *sseWriter) done(token []int) error {
	return s.finish(EventDone, DoneData{Done: true, Context: token})
}

func (s *sseWriter) fail(apiErr *api.APIError) error {
	return s.finish(EventError, ErrorData{Error: apiErr})
}

func (s *sseWriter) finish(event string, v any) error {
	if err := s.write(event, v); err != nil {
		return err
	}
	s.finished = true
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("writing [DONE]: %w", err)
	}
	return s.rc.Flush()
}

func (s *sseWriter) write(event string, v any) error {
	if s.finished {
		return fmt.Errorf("stream already finished")
	}
	if !s.started {
		s.w.Header().Set("Content-Type", "text/event-stream")
		s.w.Header().Set("Cache-Control", "no-cache")
		s.w.Header().Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("writing %s event: %w", event, err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("flushing %s event: %w", event, err)
	}
	return nil
}
