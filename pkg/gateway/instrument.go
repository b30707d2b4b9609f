package gateway

import (
	"context"
	"time"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/debug"
	"github.com/rhuss/anreicher/pkg/observability"
)

// Instrument wraps gw so that every call is counted and timed in the
// anreicher_gateway_* metrics.
func Instrument(gw Gateway) Gateway {
	return &instrumented{Gateway: gw}
}

type instrumented struct {
	Gateway
}

func (g *instrumented) observe(op string, start time.Time, err error) {
	name := g.Gateway.Name()
	observability.GatewayRequestsTotal.WithLabelValues(name, op, observability.Status(err)).Inc()
	observability.GatewayLatency.WithLabelValues(name, op).Observe(time.Since(start).Seconds())
}

func (g *instrumented) Generate(ctx context.Context, req *api.ConversationRequest) (*api.ConversationResponse, error) {
	start := time.Now()
	resp, err := g.Gateway.Generate(ctx, req)
	g.observe("generate", start, err)

	debug.Log("gateway", "generate",
		"engine", g.Gateway.Name(),
		"model", req.Model,
		"duration", time.Since(start),
		"error", err,
	)
	return resp, err
}

// Stream records the time to the first response headers, not the length
// of the stream.
func (g *instrumented) Stream(ctx context.Context, req *api.ConversationRequest) (<-chan api.StreamChunk, error) {
	start := time.Now()
	ch, err := g.Gateway.Stream(ctx, req)
	g.observe("stream", start, err)
	return ch, err
}

func (g *instrumented) ListModels(ctx context.Context) ([]api.ModelInfo, error) {
	start := time.Now()
	models, err := g.Gateway.ListModels(ctx)
	g.observe("list_models", start, err)
	return models, err
}
