package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/anreicher/pkg/pipeline"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, ANREICHER_CONFIG env, ./config.yaml, /etc/anreicher/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. ANREICHER_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/anreicher/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("ANREICHER_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/anreicher/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values;
// lists present in the YAML replace the defaults.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("ANREICHER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ANREICHER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("ANREICHER_OLLAMA_URL"); v != "" {
		setOllamaURL(cfg, v)
	}
	if v := os.Getenv("ANREICHER_DEFAULT_ENGINE"); v != "" {
		cfg.Pipeline.DefaultEngine = v
	}
	if v := os.Getenv("ANREICHER_DEFAULT_MODEL"); v != "" {
		cfg.Pipeline.DefaultModel = v
	}
	if v := os.Getenv("ANREICHER_DEFAULT_TEMPLATE"); v != "" {
		cfg.Pipeline.DefaultTemplate = v
	}
	if v := os.Getenv("ANREICHER_DIRECTORY"); v != "" {
		cfg.Directory.Type = v
	}
	if v := os.Getenv("ANREICHER_POSTGRES_DSN"); v != "" {
		cfg.Directory.Postgres.DSN = v
	}
	if v := os.Getenv("ANREICHER_REDIS_ADDR"); v != "" {
		cfg.Directory.Redis.Addr = v
	}
	if v := os.Getenv("ANREICHER_NATS_URL"); v != "" {
		cfg.Actions.NATS.URL = v
	}
	if v := os.Getenv("ANREICHER_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}

	// ANREICHER_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("ANREICHER_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err != nil {
			return fmt.Errorf("ANREICHER_API_KEYS: %w", err)
		}
		cfg.Auth.APIKeys = keys
	}

	// ANREICHER_TEMPLATES: JSON array of template configs.
	if v := os.Getenv("ANREICHER_TEMPLATES"); v != "" {
		var templates []pipeline.TemplateConfig
		if err := json.Unmarshal([]byte(v), &templates); err != nil {
			return fmt.Errorf("ANREICHER_TEMPLATES: %w", err)
		}
		cfg.Pipeline.Templates = templates
	}
	return nil
}

// setOllamaURL points the engine named "ollama" at url, adding it when it
// is not configured.
func setOllamaURL(cfg *Config, url string) {
	for i := range cfg.Engines {
		if strings.EqualFold(cfg.Engines[i].Name, "ollama") {
			cfg.Engines[i].URL = url
			return
		}
	}
	cfg.Engines = append(cfg.Engines, EngineConfig{Name: "ollama", Kind: "ollama", URL: url})
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. A value set directly takes precedence over its file.
func resolveFileReferences(cfg *Config) error {
	refs := []struct {
		path  string
		file  string
		value *string
	}{
		{"directory.postgres.dsn_file", cfg.Directory.Postgres.DSNFile, &cfg.Directory.Postgres.DSN},
		{"directory.redis.password_file", cfg.Directory.Redis.PasswordFile, &cfg.Directory.Redis.Password},
		{"actions.nats.token_file", cfg.Actions.NATS.TokenFile, &cfg.Actions.NATS.Token},
		{"auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret},
	}
	for i := range cfg.Engines {
		refs = append(refs, struct {
			path  string
			file  string
			value *string
		}{fmt.Sprintf("engines[%d].api_key_file", i), cfg.Engines[i].APIKeyFile, &cfg.Engines[i].APIKey})
	}
	for i := range cfg.Auth.APIKeys {
		refs = append(refs, struct {
			path  string
			file  string
			value *string
		}{fmt.Sprintf("auth.api_keys[%d].key_file", i), cfg.Auth.APIKeys[i].KeyFile, &cfg.Auth.APIKeys[i].Key})
	}

	for _, ref := range refs {
		if ref.file == "" || *ref.value != "" {
			continue
		}
		val, err := readSecretFile(ref.file)
		if err != nil {
			return fmt.Errorf("%s: %w", ref.path, err)
		}
		*ref.value = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
