package pipeline

import (
	"errors"
	"fmt"
	"slices"
)

// Cardinality tells the output formatter whether the template produces one
// result or a list of results.
type Cardinality string

const (
	CardinalitySingle   Cardinality = "single"
	CardinalityMultiple Cardinality = "multiple"
)

// OutputFormat is the format the final generation is expected to produce.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = ""
	OutputFormatText    OutputFormat = "text"
	OutputFormatJSON    OutputFormat = "json"
)

// TemplateConfig is the configured form of a template. Immutable after load.
type TemplateConfig struct {
	Name         string       `yaml:"name" json:"name"`
	Enrichers    []string     `yaml:"enrichers" json:"enrichers"`
	Cardinality  Cardinality  `yaml:"cardinality" json:"cardinality,omitempty"`
	Actions      []string     `yaml:"actions" json:"actions,omitempty"`
	OutputFormat OutputFormat `yaml:"output_format" json:"output_format,omitempty"`
}

// Template is a TemplateConfig resolved against the enricher registry: the
// enricher names are replaced by live instances, in configured order.
type Template struct {
	Name         string
	Enrichers    []Enricher
	Cardinality  Cardinality
	Actions      []string
	OutputFormat OutputFormat
}

// TemplateRegistry holds the configured templates by name.
type TemplateRegistry struct {
	byName map[string]TemplateConfig
	order  []string
}

// NewTemplateRegistry validates cfgs and indexes them by name. An empty
// cardinality defaults to "single". Empty or duplicate names, and unknown
// cardinality or output format values, are rejected.
func NewTemplateRegistry(cfgs []TemplateConfig) (*TemplateRegistry, error) {
	r := &TemplateRegistry{byName: make(map[string]TemplateConfig, len(cfgs))}

	var errs []error
	for i, c := range cfgs {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("templates[%d]: name is required", i))
			continue
		}
		if _, dup := r.byName[c.Name]; dup {
			errs = append(errs, fmt.Errorf("templates[%d]: duplicate template name %q", i, c.Name))
			continue
		}

		switch c.Cardinality {
		case "":
			c.Cardinality = CardinalitySingle
		case CardinalitySingle, CardinalityMultiple:
		default:
			errs = append(errs, fmt.Errorf("template %q: cardinality must be \"single\" or \"multiple\", got %q", c.Name, c.Cardinality))
		}

		switch c.OutputFormat {
		case OutputFormatDefault, OutputFormatText, OutputFormatJSON:
		default:
			errs = append(errs, fmt.Errorf("template %q: output_format must be \"text\" or \"json\", got %q", c.Name, c.OutputFormat))
		}

		c.Enrichers = slices.Clone(c.Enrichers)
		c.Actions = slices.Clone(c.Actions)
		r.byName[c.Name] = c
		r.order = append(r.order, c.Name)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup returns a copy of the template configured under name.
func (r *TemplateRegistry) Lookup(name string) (TemplateConfig, bool) {
	c, ok := r.byName[name]
	if !ok {
		return TemplateConfig{}, false
	}
	c.Enrichers = slices.Clone(c.Enrichers)
	c.Actions = slices.Clone(c.Actions)
	return c, true
}

// Names returns the template names in configuration order.
func (r *TemplateRegistry) Names() []string {
	return slices.Clone(r.order)
}

// All returns copies of every template in configuration order.
func (r *TemplateRegistry) All() []TemplateConfig {
	out := make([]TemplateConfig, 0, len(r.order))
	for _, name := range r.order {
		c, _ := r.Lookup(name)
		out = append(out, c)
	}
	return out
}
