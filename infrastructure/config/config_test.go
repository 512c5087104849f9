package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4jURI)
	assert.Equal(t, 10, cfg.Neo4jMaxPoolSize)
	assert.Equal(t, 5*time.Second, cfg.Neo4jAcquisitionTimeout)
	assert.Equal(t, 20, cfg.IngestChunkSize)
	assert.Equal(t, 500, cfg.SummaryMaxLength)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("NEO4J_MAX_POOL_SIZE", "25")
	t.Setenv("NEO4J_ACQUISITION_TIMEOUT", "2s")
	t.Setenv("ENABLE_CORS", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph:7687", cfg.Neo4jURI)
	assert.Equal(t, 25, cfg.Neo4jMaxPoolSize)
	assert.Equal(t, 2*time.Second, cfg.Neo4jAcquisitionTimeout)
	assert.False(t, cfg.EnableCORS)
}

func TestValidateProductionRequirements(t *testing.T) {
	cfg := &Config{Environment: "production"}
	assert.Error(t, cfg.Validate())

	cfg.JWTSecret = "secret"
	assert.Error(t, cfg.Validate())

	cfg.Neo4jPassword = "password"
	assert.Error(t, cfg.Validate())

	cfg.EmbeddingAPIKey = "key"
	assert.NoError(t, cfg.Validate())
}
