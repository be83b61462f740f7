// Package config loads server configuration from layered sources: built-in
// defaults, an optional .env file, an optional YAML config file, and
// ONERPC_* environment variable overrides, applied in that order and then
// validated.
package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds everything needed to compose an RPC server.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" envconfig:"ONERPC_LISTEN"`

	// Path is the endpoint path calls are served on.
	Path string `yaml:"path" envconfig:"ONERPC_PATH"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" envconfig:"ONERPC_LOG_LEVEL"`

	Auth    AuthConfig    `yaml:"auth"`
	NATS    NATSConfig    `yaml:"nats"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// AuthConfig selects and parameterizes the authenticator.
type AuthConfig struct {
	// Mode is one of none, apikey, jwt, oidc, ticket.
	Mode string `yaml:"mode" envconfig:"ONERPC_AUTH_MODE"`

	// Keys lists the accepted API keys for apikey mode. From the
	// environment the list is a JSON array.
	Keys KeyList `yaml:"keys" envconfig:"ONERPC_AUTH_KEYS"`

	// JWT mode takes exactly one of a static HMAC secret or a JWKS URL.
	JWTSecret  string `yaml:"jwt_secret" envconfig:"ONERPC_AUTH_JWT_SECRET"`
	JWKSURL    string `yaml:"jwks_url" envconfig:"ONERPC_AUTH_JWKS_URL"`
	Issuer     string `yaml:"issuer" envconfig:"ONERPC_AUTH_ISSUER"`
	Audience   string `yaml:"audience" envconfig:"ONERPC_AUTH_AUDIENCE"`
	ScopeClaim string `yaml:"scope_claim" envconfig:"ONERPC_AUTH_SCOPE_CLAIM"`

	// ClientID is the expected audience for oidc mode; Issuer is shared
	// with jwt mode.
	ClientID string `yaml:"client_id" envconfig:"ONERPC_AUTH_CLIENT_ID"`

	// TicketKeys maps key ids to base64url-encoded 32-byte keys for
	// ticket mode; TicketKey names the id new tickets are sealed with.
	TicketKeys map[string]string `yaml:"ticket_keys" envconfig:"ONERPC_AUTH_TICKET_KEYS"`
	TicketKey  string            `yaml:"ticket_key" envconfig:"ONERPC_AUTH_TICKET_KEY"`
}

// KeyConfig describes a single accepted API key.
type KeyConfig struct {
	Secret  string   `yaml:"secret" json:"secret"`
	Subject string   `yaml:"subject" json:"subject"`
	Methods []string `yaml:"methods" json:"methods"`
}

// KeyList decodes from the environment as a JSON array of key entries.
type KeyList []KeyConfig

func (k *KeyList) Decode(value string) error {
	return json.Unmarshal([]byte(value), k)
}

// NATSConfig enables the NATS transport when URL is set.
type NATSConfig struct {
	URL           string `yaml:"url" envconfig:"ONERPC_NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix" envconfig:"ONERPC_NATS_SUBJECT_PREFIX"`
}

// AuditConfig enables the PostgreSQL audit hook when DSN is set.
type AuditConfig struct {
	DSN string `yaml:"dsn" envconfig:"ONERPC_AUDIT_DSN"`
}

// MetricsConfig controls Prometheus exposition.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ONERPC_METRICS_ENABLED"`
	Path    string `yaml:"path" envconfig:"ONERPC_METRICS_PATH"`
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Listen:   ":8080",
		Path:     "/rpc",
		LogLevel: "info",
		Auth: AuthConfig{
			Mode:       "none",
			ScopeClaim: "scope",
		},
		NATS: NATSConfig{
			SubjectPrefix: "rpc",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load builds the configuration. A .env file in the working directory,
// when present, seeds process environment variables first; then defaults,
// the YAML config file, and environment overrides are layered.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded environment from .env")
	}

	cfg := Defaults()

	path := discoverConfigFile(configPath)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// discoverConfigFile finds the YAML config file: the explicit path, then
// ONERPC_CONFIG, then ./onerpc.yaml, then /etc/onerpc/config.yaml. Empty
// when none exists.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("ONERPC_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"onerpc.yaml", "/etc/onerpc/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks the configuration for a serveable combination.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("endpoint path %q must start with /", c.Path)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics path %q must start with /", c.Metrics.Path)
	}

	switch c.Auth.Mode {
	case "none":
	case "apikey":
		if len(c.Auth.Keys) == 0 {
			return fmt.Errorf("apikey auth requires at least one key")
		}
		for i, k := range c.Auth.Keys {
			if k.Secret == "" {
				return fmt.Errorf("apikey auth: key %d has an empty secret", i)
			}
		}
	case "jwt":
		if (c.Auth.JWTSecret == "") == (c.Auth.JWKSURL == "") {
			return fmt.Errorf("jwt auth requires exactly one of jwt_secret and jwks_url")
		}
	case "oidc":
		if c.Auth.Issuer == "" || c.Auth.ClientID == "" {
			return fmt.Errorf("oidc auth requires issuer and client_id")
		}
	case "ticket":
		if _, err := c.Auth.DecodeTicketKeys(); err != nil {
			return err
		}
		if _, ok := c.Auth.TicketKeys[c.Auth.TicketKey]; !ok {
			return fmt.Errorf("ticket auth: active key id %q not present in ticket_keys", c.Auth.TicketKey)
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}
	return nil
}

// DecodeTicketKeys decodes the configured ticket keys from base64url.
func (a *AuthConfig) DecodeTicketKeys() (map[string][]byte, error) {
	if len(a.TicketKeys) == 0 {
		return nil, fmt.Errorf("ticket auth requires at least one key in ticket_keys")
	}
	keys := make(map[string][]byte, len(a.TicketKeys))
	for id, encoded := range a.TicketKeys {
		key, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("ticket key %q: %w", id, err)
		}
		keys[id] = key
	}
	return keys, nil
}

// SlogLevel maps the configured log level onto slog's levels.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
