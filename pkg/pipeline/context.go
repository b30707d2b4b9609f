package pipeline

import (
	"slices"
	"sync"

	"github.com/rhuss/anreicher/pkg/api"
)

// PromptContext is the mutable state of one pipeline run. It owns a private
// copy of the caller's request, a key/value store shared by the enrichers,
// and the current continuation token.
//
// All methods are safe for concurrent use. A PromptContext belongs to one
// request and must not be shared between runs.
type PromptContext struct {
	mu           sync.RWMutex
	req          *api.ConversationRequest
	values       map[Key]any
	continuation []int
}

// NewPromptContext returns a context owning a deep copy of req. The initial
// continuation token is the one the caller supplied.
func NewPromptContext(req *api.ConversationRequest) *PromptContext {
	c := req.Clone()
	if c == nil {
		c = &api.ConversationRequest{}
	}
	return &PromptContext{
		req:          c,
		values:       make(map[Key]any),
		continuation: slices.Clone(c.Context),
	}
}

// Request returns a snapshot of the request as enriched so far.
func (pc *PromptContext) Request() *api.ConversationRequest {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.req.Clone()
}

// Prompt returns the request prompt.
func (pc *PromptContext) Prompt() string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.req.Prompt
}

// Model returns the request model.
func (pc *PromptContext) Model() string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.req.Model
}

// AppendSystem appends text to the request's system instructions.
func (pc *PromptContext) AppendSystem(text string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.req.System += text
}

// Set stores v under key. Last write wins.
func (pc *PromptContext) Set(key Key, v any) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.values[key] = v
}

// Get returns the value stored under key.
func (pc *PromptContext) Get(key Key) (any, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	v, ok := pc.values[key]
	return v, ok
}

// Delete removes key.
func (pc *PromptContext) Delete(key Key) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	delete(pc.values, key)
}

// Keys returns the stored keys in no particular order.
func (pc *PromptContext) Keys() []Key {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	keys := make([]Key, 0, len(pc.values))
	for k := range pc.values {
		keys = append(keys, k)
	}
	return keys
}

// Value returns the value under key if present and of type T.
func Value[T any](pc *PromptContext, key Key) (T, bool) {
	v, ok := pc.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Continuation returns a copy of the current continuation token.
func (pc *PromptContext) Continuation() []int {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return slices.Clone(pc.continuation)
}

// SetContinuation replaces the continuation token.
func (pc *PromptContext) SetContinuation(token []int) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.continuation = slices.Clone(token)
}

// FinalRequest returns a copy of the enriched request carrying the current
// continuation token, ready for the final generation call.
func (pc *PromptContext) FinalRequest() *api.ConversationRequest {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	r := pc.req.Clone()
	r.Context = slices.Clone(pc.continuation)
	return r
}
