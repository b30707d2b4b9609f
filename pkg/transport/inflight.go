package transport

import (
	"context"
	"sync"
)

// InFlightRegistry tracks running streams by request ID so that a client
// can cancel one from a separate request. Several streams may share an ID;
// each registration is a separate entry owned by the subject that started
// it. All methods are safe for concurrent use.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string][]*inFlight
}

type inFlight struct {
	owner  string
	cancel context.CancelFunc
}

// NewInFlightRegistry creates an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{entries: make(map[string][]*inFlight)}
}

// Register records the cancel function of a stream started by owner. The
// returned function forgets exactly this registration without cancelling
// it; call it when the stream finishes.
func (r *InFlightRegistry) Register(id, owner string, cancel context.CancelFunc) (remove func()) {
	e := &inFlight{owner: owner, cancel: cancel}

	r.mu.Lock()
	r.entries[id] = append(r.entries[id], e)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.drop(id, func(x *inFlight) bool { return x == e })
	}
}

// Cancel stops every stream registered under id by owner. It reports false
// when owner has no such stream running. Streams of other owners are left
// alone and reported the same way as missing ones.
func (r *InFlightRegistry) Cancel(id, owner string) bool {
	r.mu.Lock()
	cancelled := r.drop(id, func(x *inFlight) bool { return x.owner == owner })
	r.mu.Unlock()

	for _, e := range cancelled {
		e.cancel()
	}
	return len(cancelled) > 0
}

// drop removes the entries under id matching fn and returns them.
// r.mu must be held.
func (r *InFlightRegistry) drop(id string, fn func(*inFlight) bool) []*inFlight {
	var dropped, kept []*inFlight
	for _, e := range r.entries[id] {
		if fn(e) {
			dropped = append(dropped, e)
		} else {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(r.entries, id)
	} else {
		r.entries[id] = kept
	}
	return dropped
}

// Len returns the number of running streams.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, es := range r.entries {
		n += len(es)
	}
	return n
}
