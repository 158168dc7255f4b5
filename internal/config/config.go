// Package config centralises configuration parsing for the ChiZen processes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config captures runtime configuration shared by the api, consumer and dlqmanager binaries.
type Config struct {
	HTTPAddress    string   `env:"HTTP_ADDRESS" envDefault:":8080"`
	MetricsAddress string   `env:"METRICS_ADDRESS" envDefault:":9190"`
	PublicBaseURL  string   `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:","`

	// PostgresURL selects the Postgres store; empty runs in-memory.
	PostgresURL string `env:"POSTGRES_URL"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`
	// RedisURL enables the routine cache.
	RedisURL        string        `env:"REDIS_URL"`
	RoutineCacheTTL time.Duration `env:"ROUTINE_CACHE_TTL" envDefault:"1h"`

	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envSeparator:","`
	SchemaRegistryURL  string        `env:"SCHEMA_REGISTRY_URL" envDefault:"http://localhost:8081"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"25"`
	ConsumerGroupID    string        `env:"CONSUMER_GROUP_ID" envDefault:"chizen-consumer"`
	ConsumerTopics     []string      `env:"CONSUMER_TOPICS" envSeparator:","`
	DLQPollInterval    time.Duration `env:"DLQ_POLL_INTERVAL" envDefault:"30s"`
	DLQMaxRetries      int           `env:"DLQ_MAX_RETRIES" envDefault:"5"`
	DLQBaseDelay       time.Duration `env:"DLQ_BASE_DELAY" envDefault:"1m"`
	DLQBatchSize       int           `env:"DLQ_BATCH_SIZE" envDefault:"50"`

	JWTSecret      string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me-please"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"chizen.api"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
	DemoMode       bool          `env:"DEMO_MODE" envDefault:"false"`

	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	OpenAIModel      string        `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	GeneratorTimeout time.Duration `env:"GENERATOR_TIMEOUT" envDefault:"30s"`

	ElevenLabsAPIKey  string        `env:"ELEVENLABS_API_KEY"`
	ElevenLabsVoiceID string        `env:"ELEVENLABS_VOICE_ID"`
	NarrationTimeout  time.Duration `env:"NARRATION_TIMEOUT" envDefault:"5s"`
	MediaDir          string        `env:"MEDIA_DIR" envDefault:"./media"`

	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	FromEmail      string `env:"FROM_EMAIL" envDefault:"noreply@chizen.app"`

	GenerateRatePerMinute int `env:"GENERATE_RATE_PER_MINUTE" envDefault:"6"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads an optional .env file and then the environment. Variables already set win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = trimAll(cfg.KafkaBrokers)
	cfg.ConsumerTopics = trimAll(cfg.ConsumerTopics)
	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)
	if cfg.OutboxBatchSize <= 0 {
		return Config{}, errors.New("OUTBOX_BATCH_SIZE must be positive")
	}
	if cfg.GenerateRatePerMinute <= 0 {
		return Config{}, errors.New("GENERATE_RATE_PER_MINUTE must be positive")
	}
	return cfg, nil
}

// EventsEnabled reports whether the outbox dispatcher can run.
func (c Config) EventsEnabled() bool {
	return c.PostgresURL != "" && len(c.KafkaBrokers) > 0
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
