// Package config loads engine configuration from config.yaml with
// environment variable overrides. Secrets (database password, LLM API keys)
// must only come from environment variables.
package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the decision engine.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	LLM      LLMConfig      `yaml:"llm"`
	Rules    RulesConfig    `yaml:"rules"`

	// MigrationsPath points at the golang-migrate SQL directory.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"synapse"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"decision_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// AuthConfig holds caller-identity configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated against
	// the JWKS endpoint. Set to false for local development.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSURL is the JSON Web Key Set endpoint of the token issuer.
	JWKSURL string `yaml:"jwks_url" env:"AUTH_JWKS_URL" env-default:""`
}

// LLMConfig holds the recommendation provider configuration.
type LLMConfig struct {
	// Provider selects the recommendation backend: "openai", "anthropic"
	// or "" to disable recommendations.
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:""`
	BaseURL  string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:""`
	APIKey   string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
}

// RulesConfig holds auto-approval rule bootstrap configuration.
type RulesConfig struct {
	// BootstrapPath optionally points at a YAML file of approval rules
	// seeded into the store at startup. Empty disables seeding.
	BootstrapPath string `yaml:"bootstrap_path" env:"RULES_BOOTSTRAP_PATH" env-default:""`
}

// Load reads configuration from the given YAML file with environment
// variable overrides. The version parameter is injected at build time.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
