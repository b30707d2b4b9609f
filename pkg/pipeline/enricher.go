package pipeline

import (
	"context"

	"github.com/rhuss/anreicher/pkg/gateway"
)

// Enricher is one step of an enrichment pipeline. It inspects and extends
// the PromptContext, optionally through an auxiliary model call.
//
// Enrich must recover from malformed auxiliary responses on its own,
// degrading to an empty contribution. Errors it returns abort the run.
type Enricher interface {
	Name() string
	Enrich(ctx context.Context, pc *PromptContext) error
}

// Factory creates an Enricher bound to the gateway of the current request.
type Factory func(gw gateway.Gateway) (Enricher, error)
