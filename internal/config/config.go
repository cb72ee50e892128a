package config

import (
	"time"

	"github.com/phrazzld/imagegen-api/internal/retry"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Retry     retry.Config    `mapstructure:"retry"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Offload   OffloadConfig   `mapstructure:"offload"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains all database-related configuration settings.
// An empty URL runs the service on in-memory stores.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// LLMConfig contains the image service settings.
type LLMConfig struct {
	// GeminiAPIKey may be empty; generation calls then fail with a
	// missing-credentials error instead of the service refusing to start.
	GeminiAPIKey    string        `mapstructure:"gemini_api_key"`
	ImagenModel     string        `mapstructure:"imagen_model" validate:"required"`
	NanoBananaModel string        `mapstructure:"nano_banana_model" validate:"required"`
	AspectRatio     string        `mapstructure:"aspect_ratio" validate:"omitempty,oneof=1:1 3:4 4:3 9:16 16:9"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	// MaxRequestsPerMinute caps calls across all generations; zero disables the cap.
	MaxRequestsPerMinute int `mapstructure:"max_requests_per_minute" validate:"gte=0"`
}

// SchedulerConfig controls the per-generation schedulers.
type SchedulerConfig struct {
	DefaultRateLimit int  `mapstructure:"default_rate_limit" validate:"required,gt=0"`
	RecoverOnStart   bool `mapstructure:"recover_on_start"`
}

// RedisConfig points at the Redis instance backing the result sink and the
// offload queue. An empty Addr selects the in-memory implementations.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db" validate:"gte=0"`
	KeyPrefix string        `mapstructure:"key_prefix" validate:"required"`
	ResultTTL time.Duration `mapstructure:"result_ttl"`
}

// OffloadConfig controls the asynchronous processing path.
type OffloadConfig struct {
	WorkerEnabled bool          `mapstructure:"worker_enabled"`
	WorkerCount   int           `mapstructure:"worker_count" validate:"gte=0"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	// CallbackURL is where the worker posts results. Empty writes straight
	// to the configured sink.
	CallbackURL string `mapstructure:"callback_url" validate:"omitempty,url"`
	// SigningKey signs and verifies result callbacks. Empty disables
	// signature checks.
	SigningKey string `mapstructure:"signing_key" validate:"omitempty,min=32"`
}
