package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all server configuration, loaded from the environment.
type Config struct {
	Port    string `envconfig:"PORT" default:"8080"`
	DBPath  string `envconfig:"PRESENCEHUB_DB_PATH" default:"presencehub.db"`
	BaseURL string `envconfig:"PRESENCEHUB_BASE_URL" default:"http://localhost:8080"`

	// JWTSecret signs session tokens and the OAuth state parameter. The
	// default is for development only.
	JWTSecret        string `envconfig:"JWT_SECRET" default:"presencehub-dev-secret-change-in-production"`
	JWTLifetimeHours int    `envconfig:"JWT_LIFETIME_HOURS" default:"24"`

	// OAuth provider. Defaults target Google's Business Profile APIs; the
	// endpoints are overridable so staging environments and tests can point
	// at a stub.
	OAuthClientID     string `envconfig:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `envconfig:"OAUTH_CLIENT_SECRET"`
	OAuthAuthURL      string `envconfig:"OAUTH_AUTH_URL" default:"https://accounts.google.com/o/oauth2/auth"`
	OAuthTokenURL     string `envconfig:"OAUTH_TOKEN_URL" default:"https://oauth2.googleapis.com/token"`
	OAuthIssuerURL    string `envconfig:"OAUTH_ISSUER_URL" default:"https://accounts.google.com"`
	ProviderAPIBase   string `envconfig:"PROVIDER_API_BASE" default:"https://mybusiness.googleapis.com/v4"`

	// Redis is optional; when unset the locations cache is a no-op.
	RedisAddr string `envconfig:"REDIS_ADDR"`

	SyncCooldownSeconds int `envconfig:"SYNC_COOLDOWN_SECONDS" default:"60"`
	CacheTTLSeconds     int `envconfig:"CACHE_TTL_SECONDS" default:"300"`
}

// Load reads configuration from a .env file (if present) and the process
// environment, then validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var problems []string

	if (cfg.OAuthClientID != "") != (cfg.OAuthClientSecret != "") {
		problems = append(problems, "OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET must be set together")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		problems = append(problems, "PRESENCEHUB_BASE_URL must be a valid URL")
	}
	if cfg.SyncCooldownSeconds <= 0 {
		problems = append(problems, "SYNC_COOLDOWN_SECONDS must be positive")
	}
	if cfg.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET must not be empty")
	}
	if cfg.JWTLifetimeHours <= 0 {
		problems = append(problems, "JWT_LIFETIME_HOURS must be positive")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  %s", strings.Join(problems, "\n  "))
	}

	return &cfg, nil
}
