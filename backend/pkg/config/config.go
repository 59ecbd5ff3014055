package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	apperrors "referral-map/backend/pkg/errors"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreNeo4j  = "neo4j"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string
	Env      string
	LogLevel string

	// Storage
	StoreBackend   string
	MaxUploadBytes int64

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Place search
	PlacesAPIKey      string
	PlacesBaseURL     string
	PlacesQuerySuffix string        // Appended to every institution name, e.g. " Australia"
	PlacesTimeout     time.Duration // Per-request HTTP timeout
	LookupDelay       time.Duration // Pause between consecutive lookups of one run
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", ""),
		StoreBackend:      getEnv("STORE_BACKEND", StoreMemory),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		Neo4jURI:          getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:         getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:     getEnv("NEO4J_PASSWORD", "password"),
		PlacesAPIKey:      getEnv("PLACES_API_KEY", ""),
		PlacesBaseURL:     getEnv("PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
		PlacesQuerySuffix: getEnv("PLACES_QUERY_SUFFIX", ""),
		PlacesTimeout:     time.Duration(getEnvInt("PLACES_TIMEOUT_SECONDS", 10)) * time.Second,
		LookupDelay:       time.Duration(getEnvInt("LOOKUP_DELAY_MS", 0)) * time.Millisecond,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
		if c.Neo4jPassword == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
		}
	default:
		return apperrors.NewConfigValidationFailed("STORE_BACKEND", fmt.Sprintf("unknown backend %q", c.StoreBackend))
	}
	if c.PlacesBaseURL == "" {
		return apperrors.NewConfigMissingRequired("PLACES_BASE_URL")
	}
	if c.PlacesTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("PLACES_TIMEOUT_SECONDS", "must be positive")
	}
	if c.LookupDelay < 0 {
		return apperrors.NewConfigValidationFailed("LOOKUP_DELAY_MS", "must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return apperrors.NewConfigValidationFailed("MAX_UPLOAD_BYTES", "must be positive")
	}
	// The places API key is optional; without it enrichment is disabled
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// EnrichmentEnabled reports whether a places API key is configured
func (c *Config) EnrichmentEnabled() bool {
	return c.PlacesAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
