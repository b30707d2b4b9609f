package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/debug"
	"github.com/rhuss/anreicher/pkg/observability"
)

const tracerName = "github.com/rhuss/anreicher/pkg/pipeline"

// Executor runs enrichers over a PromptContext.
type Executor struct {
	tracer trace.Tracer
}

// NewExecutor creates an Executor using the global tracer provider.
func NewExecutor() *Executor {
	return &Executor{tracer: otel.Tracer(tracerName)}
}

// Run executes enrichers strictly in order, each to completion before the
// next starts. It stops at the first error:
//   - a done ctx, checked before every enricher and after any failure,
//     yields an operation_cancelled error
//   - an *api.APIError from an enricher is returned as is
//   - any other error is wrapped as a backend_error
//
// A panicking enricher is recovered and reported as a server_error.
func (e *Executor) Run(ctx context.Context, pc *PromptContext, enrichers []Enricher) error {
	for i, en := range enrichers {
		if err := ctx.Err(); err != nil {
			debug.Log("pipeline", "run cancelled", "before", en.Name(), "completed", i)
			return api.NewCancelledError(fmt.Sprintf("pipeline cancelled before enricher %q: %s", en.Name(), err.Error())).WithCause(err)
		}

		if err := e.runOne(ctx, pc, en); err != nil {
			if ctx.Err() != nil {
				return api.NewCancelledError(fmt.Sprintf("pipeline cancelled during enricher %q: %s", en.Name(), ctx.Err().Error())).WithCause(err)
			}
			var apiErr *api.APIError
			if errors.As(err, &apiErr) {
				return err
			}
			return api.NewBackendError(fmt.Sprintf("enricher %q: %s", en.Name(), err.Error())).WithCause(err)
		}
	}
	return nil
}

func (e *Executor) runOne(ctx context.Context, pc *PromptContext, en Enricher) (err error) {
	name := en.Name()
	ctx, span := e.tracer.Start(ctx, "enrich "+name,
		trace.WithAttributes(attribute.String("anreicher.enricher", name)),
	)
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("enricher panicked", "enricher", name, "panic", rec)
			err = api.NewServerError(fmt.Sprintf("internal error: enricher %q panicked", name))
		}

		observability.EnricherExecutionsTotal.WithLabelValues(name, observability.Status(err)).Inc()
		observability.EnricherDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		debug.Log("pipeline", "enricher finished",
			"enricher", name,
			"duration", time.Since(start),
			"error", err,
		)
	}()

	return en.Enrich(ctx, pc)
}
