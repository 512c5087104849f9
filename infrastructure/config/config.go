package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Neo4j configuration
	Neo4jURI                string
	Neo4jUsername           string
	Neo4jPassword           string
	Neo4jDatabase           string
	Neo4jMaxPoolSize        int
	Neo4jAcquisitionTimeout time.Duration

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Team directory
	TeamDirectoryURL string

	// Embedding provider
	EmbeddingURL    string
	EmbeddingAPIKey string
	EmbeddingModel  string

	// Ingest pipeline
	IngestChunkSize  int
	SummaryMaxLength int

	// Logging and features
	LogLevel   string
	EnableCORS bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		Neo4jURI:                getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUsername:           getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword:           getEnv("NEO4J_PASSWORD", ""),
		Neo4jDatabase:           getEnv("NEO4J_DATABASE", "neo4j"),
		Neo4jMaxPoolSize:        getEnvInt("NEO4J_MAX_POOL_SIZE", 10),
		Neo4jAcquisitionTimeout: getEnvDuration("NEO4J_ACQUISITION_TIMEOUT", 5*time.Second),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "kgraph-backend"),

		TeamDirectoryURL: getEnv("TEAM_DIRECTORY_URL", "http://localhost:8090"),

		EmbeddingURL:    getEnv("EMBEDDING_URL", "https://api.openai.com/v1/embeddings"),
		EmbeddingAPIKey: getEnv("EMBEDDING_API_KEY", ""),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		IngestChunkSize:  getEnvInt("INGEST_CHUNK_SIZE", 20),
		SummaryMaxLength: getEnvInt("SUMMARY_MAX_LENGTH", 500),

		LogLevel:   getEnv("LOG_LEVEL", "info"),
		EnableCORS: getEnvBool("ENABLE_CORS", true),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.Neo4jPassword == "" {
			return fmt.Errorf("NEO4J_PASSWORD is required in production")
		}
		if c.EmbeddingAPIKey == "" {
			return fmt.Errorf("EMBEDDING_API_KEY is required in production")
		}
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

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
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
