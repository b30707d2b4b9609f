package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/rhuss/anreicher/pkg/api"
)

// Factory resolves engine identifiers to gateways. All gateways are built
// once, at construction; Resolve performs no I/O.
type Factory struct {
	gateways map[string]Gateway
}

// NewFactory builds a gateway for every endpoint using the constructor
// registered for its kind. Unknown kinds, empty or duplicate names fail the
// whole factory.
func NewFactory(endpoints []Endpoint, constructors map[string]Constructor) (*Factory, error) {
	f := &Factory{gateways: make(map[string]Gateway, len(endpoints))}

	for _, ep := range endpoints {
		name := strings.ToLower(strings.TrimSpace(ep.Name))
		if name == "" {
			f.Close()
			return nil, errors.New("engine endpoint has an empty name")
		}
		if _, dup := f.gateways[name]; dup {
			f.Close()
			return nil, fmt.Errorf("duplicate engine %q", name)
		}

		ctor, ok := constructors[strings.ToLower(ep.Kind)]
		if !ok {
			f.Close()
			return nil, fmt.Errorf("engine %q: unknown backend kind %q", name, ep.Kind)
		}

		gw, err := ctor(ep)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("engine %q: %w", name, err)
		}
		f.gateways[name] = gw

		slog.Debug("engine registered", "engine", name, "kind", ep.Kind, "url", ep.URL)
	}

	return f, nil
}

// Resolve returns the gateway for engine, matched case-insensitively.
func (f *Factory) Resolve(engine string) (Gateway, error) {
	gw, ok := f.gateways[strings.ToLower(strings.TrimSpace(engine))]
	if !ok {
		return nil, api.NewUnsupportedEngineError(engine)
	}
	return gw, nil
}

// Engines returns the configured engine identifiers in sorted order.
func (f *Factory) Engines() []string {
	names := make([]string, 0, len(f.gateways))
	for name := range f.gateways {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close closes every gateway, returning the joined errors.
func (f *Factory) Close() error {
	var errs []error
	for name, gw := range f.gateways {
		if err := gw.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing engine %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
