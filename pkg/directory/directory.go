// Package directory defines the data lookups the enrichers depend on:
// events by name and users by topic. Implementations live in the
// subpackages memory, postgres and rediscache.
package directory

import (
	"context"
	"slices"
	"strings"

	"github.com/rhuss/anreicher/pkg/api"
)

// EventFinder looks up events.
type EventFinder interface {
	// FindEventByName returns the event whose name matches name
	// case-insensitively, or (nil, nil) when there is none.
	FindEventByName(ctx context.Context, name string) (*api.Event, error)
}

// UserFinder looks up users.
type UserFinder interface {
	// FindUsersByTopics returns every user tagged with at least one of
	// topics (case-insensitive), each user once, ordered by ID. An empty
	// topic list yields no users.
	FindUsersByTopics(ctx context.Context, topics []string) ([]api.User, error)
}

// Directory provides both lookups.
type Directory interface {
	EventFinder
	UserFinder
}

// NormalizeTopics lowercases, trims and deduplicates topics, dropping
// empty entries. The result is sorted.
func NormalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
