package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Memory, cfg.Memory)
	assert.Equal(t, "ollama", cfg.DefaultBackend)
	assert.Equal(t, []string{"ollama"}, cfg.BackendNames())
	assert.Equal(t, 16, cfg.IndexOptions().M)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
data_dir: /var/lib/airc
default_backend: claude
memory:
  dimension: 384
  capacity: 5000
  compression: lz4
storage:
  repository: sqlite
  blob: minio
  minio:
    endpoint: localhost:9000
    bucket: airc
backends:
  claude:
    type: anthropic
    model: claude-3-5-haiku-latest
    timeout: 30s
  hf:
    model: gpt2
`)
	t.Setenv("AIRC_CLAUDE_API_KEY", "secret")
	t.Setenv("AIRC_MEMORY_TOP_K", "7")
	t.Setenv("AIRC_STORAGE_MINIO_ACCESS_KEY", "minio")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 384, cfg.Memory.Dimension)
	assert.Equal(t, 5000, cfg.Memory.Capacity)
	assert.Equal(t, 200, cfg.Memory.EFConstruction)
	assert.Equal(t, 7, cfg.Memory.TopK)
	assert.Equal(t, "lz4", cfg.Memory.Compression)
	assert.Equal(t, "minio", cfg.Storage.Minio.AccessKey)

	claude := cfg.Backends["claude"]
	assert.Equal(t, "anthropic", claude.Type)
	assert.Equal(t, "secret", claude.APIKey)
	assert.Equal(t, 30*time.Second, claude.Timeout)
	// the backend name doubles as its type
	assert.Equal(t, "hf", cfg.Backends["hf"].Type)
	assert.Equal(t, []string{"claude", "hf", "ollama"}, cfg.BackendNames())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, `
log_level: loud
default_backend: missing
memory:
  dimension: 0
  compression: brotli
storage:
  repository: postgres
`)
	_, err := Load(path)
	require.Error(t, err)
	for _, want := range []string{"log_level", "memory.dimension", "brotli", "storage.repository", "default_backend"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestLoadRejectsEmbeddingDimensionMismatch(t *testing.T) {
	path := writeConfig(t, `
memory:
  dimension: 128
backends:
  openai:
    model: gpt-4o-mini
    embedding_model: text-embedding-3-small
    embedding_dimensions: 1536
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "backends.openai.embedding_dimensions is 1536 but memory.dimension is 128")

	path = writeConfig(t, `
memory:
  dimension: 256
backends:
  openai:
    embedding_dimensions: 256
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Backends["openai"].EmbeddingDimensions)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "memory: [1, 2"))
	assert.Error(t, err)
}

func TestPathFromEnvironment(t *testing.T) {
	t.Setenv("AIRC_CONFIG", "/etc/airc.yaml")
	assert.Equal(t, "/etc/airc.yaml", Path())
}

func TestSchema(t *testing.T) {
	data, err := json.Marshal(Schema())
	require.NoError(t, err)
	assert.Contains(t, string(data), "ef_construction")
	assert.Contains(t, string(data), "server_url")
}
