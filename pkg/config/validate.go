package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rhuss/anreicher/pkg/pipeline"
)

// Validate checks the configuration for required fields and valid values.
// Every problem is reported, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	errs = append(errs, c.validateEngines()...)

	if _, err := pipeline.NewTemplateRegistry(c.Pipeline.Templates); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.templates: %w", err))
	} else if t := c.Pipeline.DefaultTemplate; t != "" && !c.hasTemplate(t) {
		errs = append(errs, fmt.Errorf("pipeline.default_template %q is not a configured template", t))
	}

	switch c.Directory.Type {
	case "memory":
	case "postgres":
		if c.Directory.Postgres.DSN == "" && c.Directory.Postgres.DSNFile == "" {
			errs = append(errs, errors.New("directory.postgres.dsn or directory.postgres.dsn_file is required when directory.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("directory.type must be \"memory\" or \"postgres\", got %q", c.Directory.Type))
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, errors.New("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
	case "jwt":
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" && c.Auth.JWT.JWKSURL == "" {
			errs = append(errs, errors.New("auth.jwt.secret or auth.jwt.jwks_url is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}
	if c.Auth.RateLimits.DefaultRPM < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limits.default_rpm must be >= 0, got %d", c.Auth.RateLimits.DefaultRPM))
	}

	if r := c.Observability.Tracing.SampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing.sample_ratio must be within [0, 1], got %v", r))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func (c *Config) validateEngines() []error {
	var errs []error
	if len(c.Engines) == 0 {
		return []error{errors.New("engines must not be empty")}
	}

	seen := map[string]bool{}
	for i, e := range c.Engines {
		name := strings.ToLower(e.Name)
		switch {
		case name == "":
			errs = append(errs, fmt.Errorf("engines[%d].name is required", i))
		case seen[name]:
			errs = append(errs, fmt.Errorf("engines[%d]: duplicate engine name %q", i, e.Name))
		}
		seen[name] = true

		switch strings.ToLower(e.Kind) {
		case "ollama", "openai":
		default:
			errs = append(errs, fmt.Errorf("engines[%d].kind must be \"ollama\" or \"openai\", got %q", i, e.Kind))
		}
		if e.URL == "" {
			errs = append(errs, fmt.Errorf("engines[%d].url is required", i))
		}
	}

	if d := c.Pipeline.DefaultEngine; d != "" && !seen[strings.ToLower(d)] {
		errs = append(errs, fmt.Errorf("pipeline.default_engine %q is not a configured engine", d))
	}
	return errs
}

func (c *Config) hasTemplate(name string) bool {
	for _, t := range c.Pipeline.Templates {
		if t.Name == name {
			return true
		}
	}
	return false
}
