package core_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memolite "github.com/Jerrylingj/MemoLite/pkg/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := memolite.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, memolite.ProviderHash, cfg.Embedder.Provider)
	assert.Equal(t, 0.10, cfg.Memory.DecayRate)
	assert.Equal(t, 3, cfg.Memory.DefaultTopK)
	assert.Empty(t, cfg.LLM.Provider)
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("EMBEDDING_API_KEY", "sk-embed")
	t.Setenv("EMBEDDING_BASE_URL", "")
	t.Setenv("OPENAI_EMBEDDING_BASE_URL", "https://embed.example.com/v1")
	t.Setenv("EMBEDDING_CACHE_SIZE", "64")
	t.Setenv("EMBEDDING_DIMS", "")
	t.Setenv("LLM_BASE_URL", "")
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("LLM_API_KEY", "sk-llm")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("MEMORY_DECAY_RATE", "0.25")
	t.Setenv("MEMORY_TOP_K", "5")
	t.Setenv("MEMORY_NODE_ID", "7")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := memolite.LoadConfigFromEnvFile(writeFile(t, ".env", "# empty\n"))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embedder.Provider)
	assert.Equal(t, "sk-embed", cfg.Embedder.APIKey)
	assert.Equal(t, 1536, cfg.Embedder.Dimensions)
	assert.Equal(t, "https://embed.example.com/v1", cfg.Embedder.BaseURL)
	assert.Equal(t, int64(64), cfg.Embedder.CacheSize)
	assert.Equal(t, memolite.LLMConfig{Provider: "openai", APIKey: "sk-llm", Model: "gpt-4o-mini"}, cfg.LLM)
	assert.Equal(t, 0.25, cfg.Memory.DecayRate)
	assert.Equal(t, 5, cfg.Memory.DefaultTopK)
	assert.Equal(t, int64(7), cfg.Memory.NodeID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvFileInvalidNumber(t *testing.T) {
	t.Setenv("MEMORY_TOP_K", "three")

	_, err := memolite.LoadConfigFromEnvFile(writeFile(t, ".env", ""))
	assert.ErrorIs(t, err, memolite.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "MEMORY_TOP_K")
}

func TestLoadConfigFromEnvFileMissing(t *testing.T) {
	_, err := memolite.LoadConfigFromEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)

	var memErr *memolite.MemoryError
	require.ErrorAs(t, err, &memErr)
	assert.Equal(t, "LoadConfigFromEnvFile", memErr.Op)
}

func TestLoadConfigFromFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "memolite.yaml",
			content: `
memory:
  decay_rate: 0.2
  default_top_k: 4
log_level: warn
`,
		},
		{
			name:    "json",
			file:    "memolite.json",
			content: `{"memory": {"decay_rate": 0.2, "default_top_k": 4}, "log_level": "warn"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := memolite.LoadConfigFromFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, 0.2, cfg.Memory.DecayRate)
			assert.Equal(t, 4, cfg.Memory.DefaultTopK)
			assert.Equal(t, "warn", cfg.LogLevel)
			// Absent fields keep their defaults.
			assert.Equal(t, memolite.ProviderHash, cfg.Embedder.Provider)
			assert.Equal(t, int64(1), cfg.Memory.NodeID)
		})
	}
}

func TestLoadConfigFromFileErrors(t *testing.T) {
	_, err := memolite.LoadConfigFromFile(writeFile(t, "memolite.toml", "x = 1"))
	assert.ErrorIs(t, err, memolite.ErrInvalidConfig)

	_, err = memolite.LoadConfigFromFile(writeFile(t, "broken.json", "{"))
	assert.Error(t, err)

	_, err = memolite.LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*memolite.Config)
	}{
		{name: "unknown embedder", mutate: func(c *memolite.Config) { c.Embedder.Provider = "qwen" }},
		{name: "openai embedder without key", mutate: func(c *memolite.Config) { c.Embedder.Provider = "openai" }},
		{name: "negative dimensions", mutate: func(c *memolite.Config) { c.Embedder.Dimensions = -1 }},
		{name: "negative cache", mutate: func(c *memolite.Config) { c.Embedder.CacheSize = -1 }},
		{name: "unknown llm", mutate: func(c *memolite.Config) { c.LLM.Provider = "ollama" }},
		{name: "openai llm without key", mutate: func(c *memolite.Config) { c.LLM.Provider = "openai" }},
		{name: "zero decay", mutate: func(c *memolite.Config) { c.Memory.DecayRate = 0 }},
		{name: "full decay", mutate: func(c *memolite.Config) { c.Memory.DecayRate = 1 }},
		{name: "zero top-k", mutate: func(c *memolite.Config) { c.Memory.DefaultTopK = 0 }},
		{name: "node too large", mutate: func(c *memolite.Config) { c.Memory.NodeID = 1024 }},
		{name: "bad log level", mutate: func(c *memolite.Config) { c.LogLevel = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memolite.DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), memolite.ErrInvalidConfig)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := memolite.ParseLogLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := memolite.ParseLogLevel("trace")
	assert.ErrorIs(t, err, memolite.ErrInvalidConfig)
}
