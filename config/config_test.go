package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1600, cfg.Processing.ChunkSize)
	assert.Equal(t, 200, cfg.Processing.ChunkOverlap)
	assert.Equal(t, 5, cfg.Processing.TopK)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Processing, cfg.Processing)
}

func TestLoad_OverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
processing:
  chunk_size: 800
  chunk_overlap: 100
completion:
  provider: openai
  model: gpt-4o-mini
  timeout_secs: 60
storage:
  backend: redis
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Processing.ChunkSize)
	assert.Equal(t, 100, cfg.Processing.ChunkOverlap)
	assert.Equal(t, 5, cfg.Processing.TopK, "unset keys keep defaults")
	assert.Equal(t, "openai", cfg.Completion.Provider)
	assert.Equal(t, 60*time.Second, cfg.Completion.Timeout())
	assert.Equal(t, "redis", cfg.Storage.Backend)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DOCCHAT_DATABASE_URL", "postgres://app@db/docchat")
	t.Setenv("PORT", "8080")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://app@db/docchat", cfg.Database.ConnectionString)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("processing: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals size", func(c *Config) { c.Processing.ChunkOverlap = c.Processing.ChunkSize }},
		{"negative overlap", func(c *Config) { c.Processing.ChunkOverlap = -1 }},
		{"zero top k", func(c *Config) { c.Processing.TopK = 0 }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }},
		{"unknown embeddings provider", func(c *Config) { c.Embeddings.Provider = "voyage" }},
		{"unknown completion provider", func(c *Config) { c.Completion.Provider = "anthropic" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Processing.TopK = 7

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Processing.TopK)
}
