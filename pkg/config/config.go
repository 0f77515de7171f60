// Package config loads the process configuration from the environment.
package config

import "time"

// Config is the full worker process configuration.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Workers  WorkersConfig  `envPrefix:"WORKER_"`
	Scoring  ScoringConfig  `envPrefix:"SCORING_"`
	Render   RenderConfig   `envPrefix:"RENDER_"`
	Mail     MailConfig     `envPrefix:"MAIL_"`
	SQS      SQSConfig      `envPrefix:"SQS_"`
}

// RedisConfig holds the Redis connection shared by the queue store, the
// cache and the schedule lock provider.
type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
	Prefix   string `env:"PREFIX" envDefault:"propintel:"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	Username string `env:"USERNAME" envDefault:"propintel"`
	Password string `env:"PASSWORD"`
	Database string `env:"DATABASE" envDefault:"propintel"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

// WorkersConfig tunes the per-queue pools. The scoring backend is
// rate-limited so scoring keeps moderate concurrency; PDF renders are
// heavy and get the longest lock.
type WorkersConfig struct {
	ScoringConcurrency int           `env:"SCORING_CONCURRENCY" envDefault:"3"`
	ScoringLock        time.Duration `env:"SCORING_LOCK" envDefault:"30s"`
	ReportsConcurrency int           `env:"REPORTS_CONCURRENCY" envDefault:"2"`
	ReportsLock        time.Duration `env:"REPORTS_LOCK" envDefault:"60s"`
	AlertsConcurrency  int           `env:"ALERTS_CONCURRENCY" envDefault:"5"`
	AlertsLock         time.Duration `env:"ALERTS_LOCK" envDefault:"20s"`
	PollInterval       time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	ReclaimInterval    time.Duration `env:"RECLAIM_INTERVAL" envDefault:"15s"`
}

// ScoringConfig points at the deal-scoring HTTP backend.
type ScoringConfig struct {
	BaseURL string        `env:"BASE_URL"`
	APIKey  string        `env:"API_KEY"`
	Model   string        `env:"MODEL" envDefault:"claude-3.5-sonnet-v1"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"25s"`
}

// RenderConfig points at the HTML-to-PDF render service and the object
// storage for finished reports.
type RenderConfig struct {
	BaseURL    string        `env:"BASE_URL"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"50s"`
	StorageDir string        `env:"STORAGE_DIR" envDefault:"./storage/reports"`
	PublicURL  string        `env:"PUBLIC_URL" envDefault:"http://localhost:8080/reports"`
}

// MailConfig selects and configures the outbound mailer.
type MailConfig struct {
	Driver      string `env:"DRIVER" envDefault:"log"` // smtp, sqs or log
	FromAddress string `env:"FROM_ADDRESS" envDefault:"alerts@propintel.app"`
	FromName    string `env:"FROM_NAME" envDefault:"PropIntel Alerts"`
	Host        string `env:"HOST"`
	Port        string `env:"PORT" envDefault:"587"`
	Username    string `env:"USERNAME"`
	Password    string `env:"PASSWORD"`
	Encryption  string `env:"ENCRYPTION"` // "ssl" for implicit TLS
}

// SQSConfig configures the notification relay queue used by the sqs
// mail driver.
type SQSConfig struct {
	Region   string `env:"REGION" envDefault:"us-east-1"`
	QueueURL string `env:"QUEUE_URL"`
	Profile  string `env:"PROFILE"`
}
