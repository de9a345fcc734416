package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range per the Gemini API: 0.0 (deterministic) to 2.0
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 65536 {
		return fmt.Errorf("%w: must be between 1 and 65,536, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// Chat pipeline configuration
	if c.ContextWindow < 1 || c.ContextWindow > 1000 {
		return fmt.Errorf("%w: must be between 1 and 1000, got %d", ErrInvalidContextWindow, c.ContextWindow)
	}

	if c.MaxMessageChars < 1 || c.MaxMessageChars > 100000 {
		return fmt.Errorf("%w: must be between 1 and 100,000, got %d", ErrInvalidMaxMessageChars, c.MaxMessageChars)
	}

	if c.CacheTTLSeconds < 1 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidCacheTTL, c.CacheTTLSeconds)
	}

	if c.CompletionTimeoutSeconds < 1 || c.CompletionTimeoutSeconds > 300 {
		return fmt.Errorf("%w: must be between 1 and 300 seconds, got %d",
			ErrInvalidCompletionTimeout, c.CompletionTimeoutSeconds)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable)
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// Redis configuration. The cache is optional at runtime but a configured
	// address must at least look like host:port.
	if c.RedisAddr == "" || !strings.Contains(c.RedisAddr, ":") {
		return fmt.Errorf("%w: must be in host:port format, got %q", ErrInvalidRedisAddr, c.RedisAddr)
	}

	return nil
}

// ValidateServe performs additional checks required for the HTTP server.
// The completion client cannot be constructed without a Gemini API key.
func (c *Config) ValidateServe() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}
	return nil
}
