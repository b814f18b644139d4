package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all engine configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// API surface
	AuthMode    string `envconfig:"AUTH_MODE" default:"api-key"` // "api-key" or "none"
	APIKey      string `envconfig:"API_KEY"`
	CORSOrigins string `envconfig:"CORS_ORIGINS"`

	// Persistence backend. Mode "rest" talks to the hosted milestone
	// service; "memory" runs self-contained (development, demos).
	BackendMode    string        `envconfig:"BACKEND_MODE" default:"rest"`
	BackendBaseURL string        `envconfig:"BACKEND_BASE_URL"`
	BackendToken   string        `envconfig:"BACKEND_TOKEN"`
	// When set, a short-lived signed token is minted per request instead of
	// sending the static token.
	BackendSigningKey string        `envconfig:"BACKEND_SIGNING_KEY"`
	BackendTokenTTL   time.Duration `envconfig:"BACKEND_TOKEN_TTL" default:"2m"`
	BackendRetries    int           `envconfig:"BACKEND_RETRIES" default:"3"`

	// Seed fixtures for memory mode.
	SeedFile string `envconfig:"SEED_FILE"`

	// Slack (optional, engine runs without it)
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN"`
	SlackChannel  string `envconfig:"SLACK_CHANNEL" default:"#schedule-alerts"`
}

// BackendREST returns true when the hosted backend should be used.
func (c *Config) BackendREST() bool {
	return c.BackendMode == "rest"
}

// SlackEnabled returns true if Slack notifications are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != ""
}

// Validate checks cross-field requirements that envconfig cannot express.
func (c *Config) Validate() error {
	switch c.BackendMode {
	case "rest":
		if c.BackendBaseURL == "" {
			return fmt.Errorf("BACKEND_BASE_URL is required in rest mode")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown BACKEND_MODE %q, expected rest or memory", c.BackendMode)
	}
	if c.AuthMode != "api-key" && c.AuthMode != "none" {
		return fmt.Errorf("unknown AUTH_MODE %q, expected api-key or none", c.AuthMode)
	}
	if c.AuthMode == "api-key" && c.APIKey == "" {
		return fmt.Errorf("API_KEY is required when AUTH_MODE is api-key")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
