// Package config loads runtime configuration from the environment and holds
// the engine's tuning defaults.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment
// variables. Defaults describe the standard policy; deployments override
// per environment.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`

	// Persistence
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:"host=localhost user=matchpoint password=matchpoint dbname=matchpoint port=5432 sslmode=disable"`
	RedisAddr   string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB     int    `envconfig:"REDIS_DB" default:"0"`

	// Auth
	JWTSecret string        `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"72h"`

	// Match lifecycle. WarningThresholdHours is ordered largest-first; the
	// five-entry default is a policy, not a structural constraint.
	MatchTTL              time.Duration `envconfig:"MATCH_TTL" default:"72h"`
	WarningThresholdHours []int64       `envconfig:"WARNING_THRESHOLD_HOURS" default:"24,12,6,2,1"`
	SweepInterval         time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`

	// Realtime
	TypingQuietWindow time.Duration `envconfig:"TYPING_QUIET_WINDOW" default:"3s"`
	MessagesPerMinute int           `envconfig:"MESSAGES_PER_MINUTE" default:"30"`
	MaxMessageLength  int           `envconfig:"MAX_MESSAGE_LENGTH" default:"2000"`
	HistoryReloadSize int           `envconfig:"HISTORY_RELOAD_SIZE" default:"50"`

	// Notification hand-off queue consumed by the external delivery worker.
	NotificationQueue string `envconfig:"NOTIFICATION_QUEUE" default:"notifications:outbound"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
