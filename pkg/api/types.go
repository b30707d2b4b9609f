package api

import (
	"maps"
	"slices"
	"time"
)

// ConversationRequest is a generation request as received from the
// front-end. During enrichment the System text is extended and the
// Context token replaced, always on a private copy (see Clone).
type ConversationRequest struct {
	Engine    string         `json:"engine,omitempty"`
	Model     string         `json:"model"`
	Template  string         `json:"template,omitempty"`
	Prompt    string         `json:"prompt"`
	System    string         `json:"system,omitempty"`
	Suffix    string         `json:"suffix,omitempty"`
	Format    string         `json:"format,omitempty"`
	Raw       bool           `json:"raw,omitempty"`
	Stream    bool           `json:"stream,omitempty"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Context   []int          `json:"context,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// Clone returns a deep copy of r. Nested option values are copied one
// level deep; backend options are scalars in practice.
func (r *ConversationRequest) Clone() *ConversationRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.Context = slices.Clone(r.Context)
	if r.Options != nil {
		c.Options = maps.Clone(r.Options)
	}
	return &c
}

// ConversationResponse is the result of a generation.
type ConversationResponse struct {
	RunID    string `json:"run_id,omitempty"`
	Engine   string `json:"engine,omitempty"`
	Model    string `json:"model,omitempty"`
	Template string `json:"template,omitempty"`
	Response string `json:"response"`
	Context  []int  `json:"context,omitempty"`

	// Translation is the en-GB translation of the prompt when the
	// template translated it.
	Translation string `json:"translation,omitempty"`
}

// StreamChunk is one fragment of a streamed generation. The final chunk
// has Done set and carries the continuation token when the backend
// returned one. A chunk with Err set is always the last one.
type StreamChunk struct {
	Text    string `json:"text,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Context []int  `json:"context,omitempty"`
	Err     error  `json:"-"`
}

// Event describes a scheduled event known to the directory.
type Event struct {
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// User is a contact known to the directory, tagged with topics of interest.
type User struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Topics []string `json:"topics,omitempty"`
}

// ModelInfo describes a model advertised by a backend.
type ModelInfo struct {
	ID         string    `json:"id"`
	Engine     string    `json:"engine"`
	Size       int64     `json:"size,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitzero"`
}
