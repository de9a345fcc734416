// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.spurbot/config.yaml)
//  3. Default values
//
// Categories:
//   - Model: Gemini model selection, temperature, max output tokens
//   - Chat: context window, message length limit, fallback timeout
//   - Storage: PostgreSQL connection (see storage.go)
//   - Cache: Redis connection and history TTL (see storage.go)
//   - Serve: listen address, CORS origins, proxy trust, rate burst
//
// Sensitive values (passwords) are masked in MarshalJSON and String.
// Validation is fail-fast: Load returns an error before any component
// sees a bad value.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates GEMINI_API_KEY is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max output tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidContextWindow indicates the context window size is out of range.
	ErrInvalidContextWindow = errors.New("invalid context window")

	// ErrInvalidMaxMessageChars indicates the message length limit is out of range.
	ErrInvalidMaxMessageChars = errors.New("invalid max message chars")

	// ErrInvalidCacheTTL indicates the cache TTL is out of range.
	ErrInvalidCacheTTL = errors.New("invalid cache TTL")

	// ErrInvalidCompletionTimeout indicates the completion timeout is out of range.
	ErrInvalidCompletionTimeout = errors.New("invalid completion timeout")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidRedisAddr indicates the Redis address is invalid.
	ErrInvalidRedisAddr = errors.New("invalid Redis address")
)

// Reference defaults for the chat pipeline.
const (
	// DefaultModelName is the Gemini model used for support replies.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultContextWindow is the number of recent messages sent to the model.
	DefaultContextWindow = 10

	// DefaultMaxMessageChars is the maximum accepted user message length.
	DefaultMaxMessageChars = 1000

	// DefaultCacheTTLSeconds is how long a cached history entry lives.
	DefaultCacheTTLSeconds = 3600

	// DefaultCompletionTimeoutSeconds bounds a single completion call.
	DefaultCompletionTimeoutSeconds = 30
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding new
// secrets, update MarshalJSON as well.
type Config struct {
	// Model configuration
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Chat pipeline configuration
	ContextWindow            int `mapstructure:"context_window" json:"context_window"`
	MaxMessageChars          int `mapstructure:"max_message_chars" json:"max_message_chars"`
	CacheTTLSeconds          int `mapstructure:"cache_ttl_seconds" json:"cache_ttl_seconds"`
	CompletionTimeoutSeconds int `mapstructure:"completion_timeout_seconds" json:"completion_timeout_seconds"`

	// PostgreSQL configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Redis configuration (see storage.go)
	RedisAddr     string `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" json:"redis_password"` // SENSITIVE: masked in MarshalJSON
	RedisDB       int    `mapstructure:"redis_db" json:"redis_db"`

	// Serve configuration
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".spurbot")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults apply
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL and REDIS_URL take priority over individual settings
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	if err := cfg.parseRedisURL(); err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// Model defaults
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)

	// Chat pipeline defaults
	viper.SetDefault("context_window", DefaultContextWindow)
	viper.SetDefault("max_message_chars", DefaultMaxMessageChars)
	viper.SetDefault("cache_ttl_seconds", DefaultCacheTTLSeconds)
	viper.SetDefault("completion_timeout_seconds", DefaultCompletionTimeoutSeconds)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "spurbot")
	viper.SetDefault("postgres_password", "spurbot_dev_password")
	viper.SetDefault("postgres_db_name", "spurbot")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Redis defaults
	viper.SetDefault("redis_addr", "localhost:6379")
	viper.SetDefault("redis_db", 0)

	// Serve defaults (Vite dev server origin for the chat widget)
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 0)
}

// bindEnvVariables binds environment overrides explicitly.
//
// NOTE: GEMINI_API_KEY is read directly where the Gemini client is built,
// not via Viper. Validate() only checks its presence.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "SPURBOT_MODEL_NAME")
	mustBind("context_window", "SPURBOT_CONTEXT_WINDOW")
	mustBind("max_message_chars", "SPURBOT_MAX_MESSAGE_CHARS")
	mustBind("cache_ttl_seconds", "SPURBOT_CACHE_TTL_SECONDS")
	mustBind("completion_timeout_seconds", "SPURBOT_COMPLETION_TIMEOUT_SECONDS")
	mustBind("redis_addr", "REDIS_ADDR")
	mustBind("redis_password", "REDIS_PASSWORD")
	mustBind("cors_origins", "SPURBOT_CORS_ORIGINS")
	mustBind("trust_proxy", "SPURBOT_TRUST_PROXY")
	mustBind("rate_burst", "SPURBOT_RATE_BURST")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Short secrets are
// fully masked; longer ones keep the first and last two characters for
// debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.RedisPassword = maskSecret(a.RedisPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
