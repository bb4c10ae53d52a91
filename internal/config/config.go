// Package config loads application configuration from the environment.
// Core components receive the resulting structs as plain inputs and never
// read the environment themselves.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// DatabaseFamily selects the physical storage strategy declared in configuration.
type DatabaseFamily string

const (
	// FamilySupabase is the managed Postgres-compatible service, reached by
	// direct SQL first and its REST data API second.
	FamilySupabase DatabaseFamily = "supabase"
	// FamilySQLite is the embedded local database.
	FamilySQLite DatabaseFamily = "sqlite"
)

// DatabaseConfig holds storage backend selection and connection candidates.
type DatabaseConfig struct {
	Family DatabaseFamily

	// SupabaseURL and SupabaseKey configure the REST fallback path.
	SupabaseURL string
	SupabaseKey string

	// ConnectionOptions are direct Postgres DSN candidates, tried in order.
	ConnectionOptions []string

	// SQLitePath is the embedded database file. An empty value means in-memory.
	SQLitePath string

	// ConnectTimeout bounds each direct-SQL connection attempt.
	ConnectTimeout time.Duration
	// RequestTimeout bounds each REST call.
	RequestTimeout time.Duration
}

// LLMConfig holds the generation API settings.
type LLMConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// PlaceholderKeys are sentinel values that mark an unconfigured credential.
	PlaceholderKeys []string
}

// Config holds all application configuration
type Config struct {
	ServerAddress string
	Environment   string
	LogLevel      string

	Database DatabaseConfig
	LLM      LLMConfig
}

// defaultPlaceholderKeys are the credential sentinels shipped in example env
// files; a key equal to any of these is treated as absent.
var defaultPlaceholderKeys = []string{
	"LLM_API_KEY_here",
	"your-api-key-here",
	"your_llm_api_key_here",
	"sk-xxxx",
}

// Load creates a new configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		Database: DatabaseConfig{
			Family:            DatabaseFamily(strings.ToLower(getEnv("DATABASE_TYPE", "sqlite"))),
			SupabaseURL:       getEnv("SUPABASE_URL", ""),
			SupabaseKey:       getEnv("SUPABASE_KEY", ""),
			ConnectionOptions: getEnvList("SUPABASE_CONNECTION_OPTIONS"),
			SQLitePath:        getEnv("SQLITE_PATH", "app.db"),
			ConnectTimeout:    getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
			RequestTimeout:    getEnvDuration("REST_REQUEST_TIMEOUT", 10*time.Second),
		},

		LLM: LLMConfig{
			BaseURL:         getEnv("LLM_BASE_URL", "https://api.siliconflow.cn/v1"),
			APIKey:          getEnv("LLM_API_KEY", ""),
			Model:           getEnv("LLM_MODEL", "deepseek-ai/DeepSeek-R1"),
			Timeout:         getEnvDuration("LLM_TIMEOUT", 60*time.Second),
			PlaceholderKeys: defaultPlaceholderKeys,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the declared configuration is internally consistent.
// Missing remote credentials are not an error here: the connection probe
// degrades to the embedded database instead of failing startup.
func (c *Config) Validate() error {
	switch c.Database.Family {
	case FamilySupabase, FamilySQLite:
	default:
		return fmt.Errorf("unknown DATABASE_TYPE %q", c.Database.Family)
	}

	if c.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("DB_CONNECT_TIMEOUT must be positive")
	}
	if c.Database.RequestTimeout <= 0 {
		return fmt.Errorf("REST_REQUEST_TIMEOUT must be positive")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList parses a comma-separated environment variable into a slice.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
