// Package config provides unified configuration for the anreicher gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ANREICHER_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/anreicher/pkg/pipeline"
)

// Config holds all configuration for the anreicher gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engines       []EngineConfig      `yaml:"engines"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Directory     DirectoryConfig     `yaml:"directory"`
	Actions       ActionsConfig       `yaml:"actions"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int           `yaml:"port"`                // default: 8080
	MaxBodySize       int64         `yaml:"max_body_size"`       // default: 10 MB
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"` // default: 10s
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`    // default: 30s
}

// EngineConfig describes one model backend.
type EngineConfig struct {
	Name       string        `yaml:"name" json:"name"`
	Kind       string        `yaml:"kind" json:"kind"` // "ollama" or "openai"
	URL        string        `yaml:"url" json:"url"`
	APIKey     string        `yaml:"api_key" json:"api_key,omitempty"`
	APIKeyFile string        `yaml:"api_key_file" json:"api_key_file,omitempty"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout,omitempty"` // default: backend specific
}

// PipelineConfig holds request defaults and the template list.
type PipelineConfig struct {
	DefaultEngine   string                    `yaml:"default_engine"`   // default: "ollama"
	DefaultModel    string                    `yaml:"default_model"`    // default: "mistral"
	DefaultTemplate string                    `yaml:"default_template"` // optional
	MaxPromptSize   int                       `yaml:"max_prompt_size"`  // default: 100000
	MaxSystemSize   int                       `yaml:"max_system_size"`  // default: 100000
	Templates       []pipeline.TemplateConfig `yaml:"templates"`
}

// DirectoryConfig selects the event and user directory.
type DirectoryConfig struct {
	Type     string         `yaml:"type"` // "memory" or "postgres", default: "memory"
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
	SeedOnStart    bool   `yaml:"seed_on_start"`    // default: false
}

// RedisConfig enables the read-through directory cache when Addr is set.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	PasswordFile string        `yaml:"password_file"` // _file variant for password
	DB           int           `yaml:"db"`
	TTL          time.Duration `yaml:"ttl"` // default: 10m
	Prefix       string        `yaml:"prefix"`
}

// ActionsConfig configures post-generation actions. The log action is
// always available; publish is available when NATS is configured.
type ActionsConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig holds the publish action's broker settings.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	TokenFile     string `yaml:"token_file"`     // _file variant for token
	SubjectPrefix string `yaml:"subject_prefix"` // default: "anreicher.generated"
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type       string          `yaml:"type"`     // "none", "apikey" or "jwt", default: "none"
	APIKeys    []APIKeyConfig  `yaml:"api_keys"` // for type=apikey
	JWT        JWTConfig       `yaml:"jwt"`      // for type=jwt
	RateLimits RateLimitConfig `yaml:"rate_limits"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string   `yaml:"key" json:"key"`
	KeyFile     string   `yaml:"key_file" json:"key_file,omitempty"` // _file variant for key
	Subject     string   `yaml:"subject" json:"subject"`
	ServiceTier string   `yaml:"service_tier" json:"service_tier,omitempty"`
	Scopes      []string `yaml:"scopes" json:"scopes,omitempty"`
}

// JWTConfig holds bearer token verification settings.
type JWTConfig struct {
	Issuer       string        `yaml:"issuer"`
	Audience     string        `yaml:"audience"`
	Secret       string        `yaml:"secret"`
	SecretFile   string        `yaml:"secret_file"` // _file variant for secret
	JWKSURL      string        `yaml:"jwks_url"`
	SubjectClaim string        `yaml:"subject_claim"` // default: "sub"
	TierClaim    string        `yaml:"tier_claim"`    // default: "tier"
	ScopesClaim  string        `yaml:"scopes_claim"`  // default: "scope"
	CacheTTL     time.Duration `yaml:"cache_ttl"`     // default: 1h
}

// RateLimitConfig limits requests per minute by service tier. A zero
// DefaultRPM with no tiers disables rate limiting.
type RateLimitConfig struct {
	DefaultRPM int            `yaml:"default_rpm"`
	Tiers      map[string]int `yaml:"tiers"`
}

// Enabled reports whether any limit is configured.
func (r RateLimitConfig) Enabled() bool {
	return r.DefaultRPM > 0 || len(r.Tiers) > 0
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"` // default: true
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"` // default: "anreicher"
	SampleRatio float64 `yaml:"sample_ratio"` // default: 1
}

// LoggingConfig holds log settings. ANREICHER_LOG_LEVEL and
// ANREICHER_DEBUG override Level and Debug at startup.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:              8080,
			MaxBodySize:       10 << 20,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Engines: []EngineConfig{
			{Name: "ollama", Kind: "ollama", URL: "http://localhost:11434", Timeout: 5 * time.Minute},
		},
		Pipeline: PipelineConfig{
			DefaultEngine: "ollama",
			DefaultModel:  "mistral",
			MaxPromptSize: 100000,
			MaxSystemSize: 100000,
			Templates:     DefaultTemplates(),
		},
		Directory: DirectoryConfig{
			Type:     "memory",
			Postgres: PostgresConfig{MaxConns: 10},
			Redis:    RedisConfig{TTL: 10 * time.Minute, Prefix: "anreicher"},
		},
		Actions: ActionsConfig{
			NATS: NATSConfig{SubjectPrefix: "anreicher.generated"},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{Enabled: true},
			Tracing: TracingConfig{ServiceName: "anreicher", SampleRatio: 1},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultTemplates returns the templates available without configuration.
func DefaultTemplates() []pipeline.TemplateConfig {
	return []pipeline.TemplateConfig{
		{
			Name:      "campaign",
			Enrichers: []string{"normalizer", "scope_extractor", "user_lookup"},
			Actions:   []string{"log"},
		},
		{
			Name:      "event_invite",
			Enrichers: []string{"event_metadata", "scope_extractor", "user_lookup"},
			Actions:   []string{"log"},
		},
		{
			Name:      "translate",
			Enrichers: []string{"translate_en_gb"},
		},
		{
			Name:         "contacts",
			Enrichers:    []string{"scope_extractor", "user_lookup"},
			Cardinality:  pipeline.CardinalityMultiple,
			OutputFormat: pipeline.OutputFormatJSON,
		},
	}
}
