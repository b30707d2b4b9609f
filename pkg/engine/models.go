package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/gateway"
)

func listModels(ctx context.Context, gw gateway.Gateway) ([]api.ModelInfo, error) {
	models, err := gw.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range models {
		if models[i].Engine == "" {
			models[i].Engine = gw.Name()
		}
	}
	return models, nil
}

// listAllModels queries every engine concurrently. The result is grouped
// by engine in the factory's order; the first failure fails the listing.
func listAllModels(ctx context.Context, f *gateway.Factory) ([]api.ModelInfo, error) {
	engines := f.Engines()
	perEngine := make([][]api.ModelInfo, len(engines))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range engines {
		g.Go(func() error {
			gw, err := f.Resolve(name)
			if err != nil {
				return err
			}
			models, err := listModels(gctx, gw)
			if err != nil {
				return err
			}
			perEngine[i] = models
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := []api.ModelInfo{}
	for _, models := range perEngine {
		all = append(all, models...)
	}
	return all, nil
}
