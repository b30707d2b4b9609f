package action

import (
	"context"
	"log/slog"

	"github.com/rhuss/anreicher/pkg/debug"
)

// NameLog is the name of the logging action.
const NameLog = "log"

// LogAction writes one structured log line per completed run.
type LogAction struct {
	logger *slog.Logger
}

// NewLogAction returns a log action writing to logger, or to the default
// logger when logger is nil.
func NewLogAction(logger *slog.Logger) *LogAction {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAction{logger: logger}
}

func (a *LogAction) Name() string { return NameLog }

func (a *LogAction) Execute(ctx context.Context, ev Event) error {
	a.logger.InfoContext(ctx, "pipeline completed",
		"run_id", ev.RunID,
		"template", ev.Template,
		"engine", ev.Engine,
		"model", ev.Model,
		"scopes", ev.Scopes,
		"users", len(ev.Users),
		"response", debug.Truncate(ev.Response, 200),
	)
	return nil
}
