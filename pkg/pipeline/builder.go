package pipeline

import (
	"fmt"
	"slices"

	"github.com/rhuss/anreicher/pkg/api"
	"github.com/rhuss/anreicher/pkg/debug"
	"github.com/rhuss/anreicher/pkg/gateway"
)

// Builder resolves template names into Templates with live enrichers.
type Builder struct {
	templates *TemplateRegistry
	enrichers *Registry
}

// NewBuilder checks every enricher name of every template against the
// enricher registry and fails with an EnricherNotFound error for the first
// name that has no registration.
func NewBuilder(templates *TemplateRegistry, enrichers *Registry) (*Builder, error) {
	for _, c := range templates.All() {
		for _, name := range c.Enrichers {
			if !enrichers.Has(name) {
				return nil, api.NewEnricherNotFoundError(c.Name, name)
			}
		}
	}
	return &Builder{templates: templates, enrichers: enrichers}, nil
}

// Templates returns the template registry the builder resolves against.
func (b *Builder) Templates() *TemplateRegistry {
	return b.templates
}

// Resolve looks up the template by exact name and instantiates its
// enrichers, in configured order, bound to gw. It performs no network I/O.
func (b *Builder) Resolve(name string, gw gateway.Gateway) (*Template, error) {
	c, ok := b.templates.Lookup(name)
	if !ok {
		return nil, api.NewTemplateNotFoundError(name)
	}

	enrichers := make([]Enricher, 0, len(c.Enrichers))
	for _, en := range c.Enrichers {
		factory, ok := b.enrichers.Lookup(en)
		if !ok {
			return nil, api.NewEnricherNotFoundError(c.Name, en)
		}
		e, err := factory(gw)
		if err != nil {
			return nil, api.NewServerError(fmt.Sprintf("template %q: creating enricher %q: %s", c.Name, en, err.Error())).WithCause(err)
		}
		enrichers = append(enrichers, e)
	}

	debug.Log("pipeline", "template resolved", "template", c.Name, "enrichers", c.Enrichers)

	return &Template{
		Name:         c.Name,
		Enrichers:    enrichers,
		Cardinality:  c.Cardinality,
		Actions:      slices.Clone(c.Actions),
		OutputFormat: c.OutputFormat,
	}, nil
}
