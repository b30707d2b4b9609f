// Package memory provides an in-memory directory for tests and
// lightweight deployments. Data is lost when the process restarts.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/directory"
)

// Store is an in-memory Directory.
type Store struct {
	mu     sync.RWMutex
	events map[string]api.Event // keyed by lowercased name
	users  map[int64]api.User
}

// Ensure Store implements directory.Directory at compile time.
var _ directory.Directory = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		events: make(map[string]api.Event),
		users:  make(map[int64]api.User),
	}
}

// NewSeeded creates a store holding the demo data of directory.SeedEvents
// and directory.SeedUsers.
func NewSeeded() *Store {
	s := New()
	for _, e := range directory.SeedEvents() {
		s.AddEvent(e)
	}
	for _, u := range directory.SeedUsers() {
		s.AddUser(u)
	}
	return s
}

// AddEvent stores e, replacing any event with the same name.
func (s *Store) AddEvent(e api.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[strings.ToLower(strings.TrimSpace(e.Name))] = e
}

// AddUser stores u, replacing any user with the same ID.
func (s *Store) AddUser(u api.User) error {
	if u.ID == 0 {
		return fmt.Errorf("user %q: id is required", u.Name)
	}
	u.Topics = slices.Clone(u.Topics)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// FindEventByName returns the event with the given name, ignoring case.
func (s *Store) FindEventByName(_ context.Context, name string) (*api.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

// FindUsersByTopics returns users tagged with any of topics, ignoring case.
func (s *Store) FindUsersByTopics(_ context.Context, topics []string) ([]api.User, error) {
	wanted := directory.NormalizeTopics(topics)
	if len(wanted) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []api.User
	for _, u := range s.users {
		if hasTopic(u, wanted) {
			u.Topics = slices.Clone(u.Topics)
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b api.User) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

func hasTopic(u api.User, wanted []string) bool {
	for _, t := range u.Topics {
		if _, found := slices.BinarySearch(wanted, strings.ToLower(strings.TrimSpace(t))); found {
			return true
		}
	}
	return false
}
