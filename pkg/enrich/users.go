package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/debug"
	"github.com/rhuss/anreicher/pkg/directory"
	"github.com/rhuss/anreicher/pkg/pipeline"
)

// UserLookup lists the users interested in the extracted scopes. It makes
// no model call and does nothing unless a scope extractor ran before it.
type UserLookup struct {
	users directory.UserFinder
}

func (u *UserLookup) Name() string { return NameUserLookup }

func (u *UserLookup) Enrich(ctx context.Context, pc *pipeline.PromptContext) error {
	scopes, _ := pipeline.Value[[]string](pc, pipeline.KeyExtractedScopes)
	if len(scopes) == 0 {
		debug.Log("enrich", "no scopes, skipping user lookup")
		return nil
	}

	users, err := u.users.FindUsersByTopics(ctx, scopes)
	if err != nil {
		return fmt.Errorf("looking up users: %w", err)
	}
	if len(users) == 0 {
		debug.Log("enrich", "no users for scopes", "scopes", scopes)
		return nil
	}

	pc.Set(pipeline.KeyEnrichedUsers, users)
	pc.AppendSystem(formatUsers(users))
	return nil
}

func formatUsers(users []api.User) string {
	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, fmt.Sprintf("- %s (%s)", u.Name, u.Email))
	}
	return "\n\n### Relevant Users:\n" + strings.Join(lines, "\n")
}
