package directory

import (
	"time"

	"github.com/rhuss/anreicher/pkg/api"
)

// SeedEvents returns the demo events loaded by the in-memory directory and
// by the postgres directory when seeding is enabled.
func SeedEvents() []api.Event {
	return []api.Event{
		{
			Name:        "Tech of the Future",
			Location:    "New York, USA",
			Date:        time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC),
			Description: "A conference about AI and Web3.",
		},
	}
}

// SeedUsers returns the demo users matching SeedEvents.
func SeedUsers() []api.User {
	return []api.User{
		{ID: 1, Name: "Alice", Email: "alice@example.com", Topics: []string{"AI", "Web"}},
		{ID: 2, Name: "Bob", Email: "bob@example.com", Topics: []string{"Database", "Security"}},
		{ID: 3, Name: "Charlie", Email: "charlie@example.com", Topics: []string{"AI", "Security"}},
	}
}
