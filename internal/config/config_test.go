package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: \"9000\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 1000, cfg.Retrieval.MaxChunkSize)
	assert.Equal(t, 5, cfg.Retrieval.NResults)
	assert.Equal(t, 15, cfg.Retrieval.MinArabicResults)
	assert.InDelta(t, 0.1, cfg.Retrieval.NumericBoost, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.VectorTimeout)
	assert.Equal(t, "elasticsearch", cfg.Retrieval.Backend)
	assert.Equal(t, 3, cfg.Kafka.MaxAttempts)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
retrieval:
  backend: memory
  max_chunk_size: 400
  vector_timeout: 2s
embedding:
  provider: hashing
  dimensions: 256
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Retrieval.Backend)
	assert.Equal(t, 400, cfg.Retrieval.MaxChunkSize)
	assert.Equal(t, 2*time.Second, cfg.Retrieval.VectorTimeout)
	assert.Equal(t, "hashing", cfg.Embedding.Provider)
	assert.Equal(t, 256, cfg.Embedding.Dimensions)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "llm:\n  api_key: from-file\n")
	t.Setenv("RAG_LLM_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
