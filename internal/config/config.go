package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

const devJWTSecret = "corgi-quest-local-dev-secret"

// Config holds the configuration for the quest service, worker and CLI.
// Environment variables are parsed with the CORGI_QUEST_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud-dev, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override driver: postgres | sqlite | auto
	DBDriver string `envconfig:"DB_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	HTTPPort       int      `envconfig:"HTTP_PORT" default:"8080"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`

	BootstrapTimeoutSeconds   int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"5"`
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`

	// Member tokens
	JWTSecret     string `envconfig:"JWT_SECRET" default:""`
	TokenTTLHours int    `envconfig:"TOKEN_TTL_HOURS" default:"720"`

	// Household rules
	TimeZone            string `envconfig:"TIME_ZONE" default:"UTC"`
	MaxHouseholdMembers int    `envconfig:"MAX_HOUSEHOLD_MEMBERS" default:"2"`
	DailyPhysicalTarget int    `envconfig:"DAILY_PHYSICAL_TARGET" default:"60"`
	DailyMentalTarget   int    `envconfig:"DAILY_MENTAL_TARGET" default:"40"`

	// AI gateway. OPENAI_API_KEY without prefix is accepted as a fallback.
	OpenAIAPIKey            string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL           string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com"`
	RealtimeURL             string `envconfig:"REALTIME_URL" default:"wss://api.openai.com/v1/realtime"`
	RealtimeModel           string `envconfig:"REALTIME_MODEL" default:"gpt-4o-realtime-preview-2024-12-17"`
	RealtimeVoice           string `envconfig:"REALTIME_VOICE" default:"alloy"`
	ChatModel               string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	ImageModel              string `envconfig:"IMAGE_MODEL" default:"dall-e-3"`
	AIRequestTimeoutSeconds int    `envconfig:"AI_REQUEST_TIMEOUT_SECONDS" default:"30"`

	// Realtime reconnect policy
	ReconnectMaxAttempts int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	ReconnectBaseDelayMs int `envconfig:"RECONNECT_BASE_DELAY_MS" default:"1000"`
	ReconnectMaxDelayMs  int `envconfig:"RECONNECT_MAX_DELAY_MS" default:"30000"`

	// Outbox worker
	OutboxBatchSize       int `envconfig:"OUTBOX_BATCH_SIZE" default:"10"`
	OutboxIntervalSeconds int `envconfig:"OUTBOX_INTERVAL_SECONDS" default:"5"`
	// EmbeddedWorker runs the art worker inside quest-service so art_ready
	// events reach the in-process live feed.
	EmbeddedWorker bool `envconfig:"EMBEDDED_WORKER" default:"true"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver, SQLitePath and
// JWTSecret when they are left on "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string

	switch c.BuildTarget {
	case "cloud-dev", "cloud":
		defaultDB = "postgres"
	case "local":
		defaultDB = "sqlite"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.DBDriver == "sqlite" && c.SQLitePath == "" {
		c.SQLitePath = filepath.Join("data", "corgi-quest.db")
	}

	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		c.JWTSecret = devJWTSecret
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	if c.MaxHouseholdMembers <= 0 {
		return fmt.Errorf("MAX_HOUSEHOLD_MEMBERS must be positive")
	}
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with CORGI_QUEST_
// Example: CORGI_QUEST_HTTP_PORT, CORGI_QUEST_POSTGRES_DSN
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("CORGI_QUEST", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Str("time_zone", cfg.TimeZone).
		Str("chat_model", cfg.ChatModel).
		Str("realtime_model", cfg.RealtimeModel).
		Bool("openai_key_present", cfg.OpenAIAPIKey != "").
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		BuildTarget:               "local",
		DBDriver:                  "sqlite",
		Environment:               EnvTesting,
		HTTPPort:                  8080,
		SQLitePath:                ":memory:",
		BootstrapTimeoutSeconds:   5,
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
		JWTSecret:                 "test-secret",
		TokenTTLHours:             1,
		TimeZone:                  "UTC",
		MaxHouseholdMembers:       2,
		DailyPhysicalTarget:       60,
		DailyMentalTarget:         40,
		OpenAIBaseURL:             "http://127.0.0.1:0",
		RealtimeModel:             "gpt-4o-realtime-preview-2024-12-17",
		RealtimeVoice:             "alloy",
		ChatModel:                 "gpt-4o-mini",
		ImageModel:                "dall-e-3",
		AIRequestTimeoutSeconds:   30,
		ReconnectMaxAttempts:      5,
		ReconnectBaseDelayMs:      10,
		ReconnectMaxDelayMs:       100,
		OutboxBatchSize:           10,
		OutboxIntervalSeconds:     1,
		EmbeddedWorker:            false,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Location returns the household time zone; ResolveDefaults has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AIRequestTimeout is the ceiling applied to every outbound AI call.
func (c *Config) AIRequestTimeout() time.Duration {
	if c.AIRequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.AIRequestTimeoutSeconds) * time.Second
}
