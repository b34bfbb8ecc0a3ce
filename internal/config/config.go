package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration loaded from the environment
type Config struct {
	// GitHub
	GitHubToken string `envconfig:"GITHUB_TOKEN"`

	// Collection
	ReposFile  string        `envconfig:"REPOS_FILE" default:"config/repos.json"`
	OutputPath string        `envconfig:"OUTPUT_PATH" default:"data/collected_data.json"`
	RunTimeout time.Duration `envconfig:"RUN_TIMEOUT" default:"45m" validate:"gt=0"`

	// Storage
	StorageType string `envconfig:"STORAGE_TYPE" default:"sqlite" validate:"oneof=sqlite postgres"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./dashboard.db"`
	PostgresURL string `envconfig:"POSTGRES_URL"`

	// API Server
	APIPort string `envconfig:"API_PORT" default:"8080"`
	APIHost string `envconfig:"API_HOST" default:"localhost"`

	// CLI
	APIEndpoint string `envconfig:"API_ENDPOINT" default:"http://localhost:8080"`
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.GitHubToken == "" {
		return &ConfigError{Field: "GITHUB_TOKEN", Message: "GitHub token is required"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	if err := validator.New().Struct(c); err != nil {
		return &ConfigError{Field: "env", Message: err.Error()}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
