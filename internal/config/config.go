package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"thinkb"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`
	Timezone                string        `env:"APP_TIMEZONE" envDefault:"UTC"`

	Storage    Storage
	Postgres   Postgres
	Redis      Redis
	Inference  Inference
	Security   Security
	Extraction Extraction
	AutoGen    AutoGen
}

// Storage selects the key-value backend.
type Storage struct {
	Backend    string `env:"STORAGE_BACKEND" envDefault:"sqlite"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/thinkb.db"`
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER" envDefault:""`
	Password string `env:"PG_PASSWORD" envDefault:""`
	Database string `env:"PG_DATABASE" envDefault:""`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds cache + store configuration.
type Redis struct {
	Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize  int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"thinkb:"`
}

// Inference configures the quiz-generation providers, tried in order.
type Inference struct {
	PrimaryURL      string        `env:"INFERENCE_URL" envDefault:""`
	PrimaryModel    string        `env:"INFERENCE_MODEL" envDefault:""`
	Timeout         time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"60s"`
	OpenAIURL       string        `env:"OPENAI_URL" envDefault:"https://api.openai.com/v1/chat/completions"`
	OpenAIKey       string        `env:"OPENAI_API_KEY" envDefault:""`
	OpenAIModel     string        `env:"OPENAI_MODEL" envDefault:"gpt-3.5-turbo"`
	OpenAITemp      float64       `env:"OPENAI_TEMPERATURE" envDefault:"0.7"`
	AnthropicKey    string        `env:"ANTHROPIC_API_KEY" envDefault:""`
	AnthropicModel  string        `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-latest"`
	AnthropicTokens int64         `env:"ANTHROPIC_MAX_TOKENS" envDefault:"4096"`
}

// Security stores secrets for credential derivation and entitlements.
type Security struct {
	CredentialSecret  string `env:"CREDENTIAL_MASTER_SECRET,notEmpty"`
	CredentialSalt    string `env:"CREDENTIAL_SALT" envDefault:"thinkb"`
	EntitlementSecret string `env:"ENTITLEMENT_SECRET" envDefault:""`
}

// Extraction configures the PDF text-extraction service.
type Extraction struct {
	URL     string        `env:"EXTRACTION_URL" envDefault:""`
	Timeout time.Duration `env:"EXTRACTION_TIMEOUT" envDefault:"30s"`
}

// AutoGen governs the scheduled daily quiz.
type AutoGen struct {
	Enabled  bool          `env:"AUTOGEN_ENABLED" envDefault:"true"`
	Interval time.Duration `env:"AUTOGEN_INTERVAL" envDefault:"30m"`
	Timeout  time.Duration `env:"AUTOGEN_TIMEOUT" envDefault:"2m"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	switch cfg.Storage.Backend {
	case "sqlite", "redis", "postgres", "memory":
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.Storage.Backend)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	return cfg, nil
}

// Location returns the configured time zone.
func (a *App) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN is the libpq-style connection string for Postgres.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}
