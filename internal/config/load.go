package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable the loader reads.
const EnvPrefix = "IMAGEGEN"

// defaults lists every known key. Registering each one lets AutomaticEnv
// pick up overrides for keys that no config file mentions.
var defaults = map[string]any{
	"server.port":                  8080,
	"server.log_level":             "info",
	"server.shutdown_timeout":      "15s",
	"database.url":                 "",
	"llm.gemini_api_key":           "",
	"llm.imagen_model":             "imagen-4.0-generate-001",
	"llm.nano_banana_model":        "gemini-2.5-flash-image",
	"llm.aspect_ratio":             "1:1",
	"llm.request_timeout":          "2m",
	"llm.max_requests_per_minute":  0,
	"scheduler.default_rate_limit": 60,
	"scheduler.recover_on_start":   true,
	"retry.max_attempts":           3,
	"retry.base_delay":             "1s",
	"redis.addr":                   "",
	"redis.password":               "",
	"redis.db":                     0,
	"redis.key_prefix":             "imagegen",
	"redis.result_ttl":             "24h",
	"offload.worker_enabled":       false,
	"offload.worker_count":         2,
	"offload.poll_interval":        "1s",
	"offload.callback_url":         "",
	"offload.signing_key":          "",
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given config file instead of
// searching the working directory for config.yaml.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct validation over cfg.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}
