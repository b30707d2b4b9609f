// Package action implements post-generation actions. A template names the
// actions to run once its final response is available; failures are
// logged and counted but never change the response.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/debug"
	"github.com/rhuss/anreicher/pkg/observability"
)

// Event describes a completed pipeline run.
type Event struct {
	RunID       string     `json:"run_id"`
	Template    string     `json:"template"`
	Engine      string     `json:"engine"`
	Model       string     `json:"model"`
	Prompt      string     `json:"prompt"`
	Response    string     `json:"response"`
	Scopes      []string   `json:"scopes,omitempty"`
	Users       []api.User `json:"users,omitempty"`
	Translation string     `json:"translation,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// Action is one post-generation step.
type Action interface {
	Name() string
	Execute(ctx context.Context, ev Event) error
}

// Runner holds the configured actions by name.
type Runner struct {
	actions map[string]Action
}

// NewRunner returns a runner for the given actions. Names must be unique.
func NewRunner(actions ...Action) (*Runner, error) {
	r := &Runner{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		if _, dup := r.actions[a.Name()]; dup {
			return nil, fmt.Errorf("action %q registered twice", a.Name())
		}
		r.actions[a.Name()] = a
	}
	return r, nil
}

// Names returns the available action names, sorted.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Validate reports every name in names that has no action.
func (r *Runner) Validate(template string, names []string) error {
	var errs []error
	for _, n := range names {
		if _, ok := r.actions[n]; !ok {
			errs = append(errs, fmt.Errorf("template %q: unknown action %q (available: %v)", template, n, r.Names()))
		}
	}
	return errors.Join(errs...)
}

// Run executes the named actions in order. Unknown names are skipped with
// a warning.
func (r *Runner) Run(ctx context.Context, names []string, ev Event) {
	for _, n := range names {
		a, ok := r.actions[n]
		if !ok {
			slog.Warn("skipping unknown action", "action", n, "template", ev.Template)
			continue
		}

		err := a.Execute(ctx, ev)
		observability.ActionExecutionsTotal.WithLabelValues(n, observability.Status(err)).Inc()
		if err != nil {
			slog.Warn("action failed", "action", n, "run_id", ev.RunID, "template", ev.Template, "error", err)
			continue
		}
		debug.Log("actions", "action completed", "action", n, "run_id", ev.RunID)
	}
}
