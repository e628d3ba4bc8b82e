package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Jerrylingj/MemoLite/pkg/intelligence"
)

// Supported provider names.
const (
	ProviderHash     = "hash"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
)

// Config contains the complete configuration for a MemoLite client.
//
// It includes settings for:
//   - Embedding provider (for semantic search)
//   - LLM provider (optional, only needed by Ingest)
//   - Memory pipeline tuning (decay rate, default search size, ID node)
//
// Example:
//
//	config := &core.Config{
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-3-small",
//	        Dimensions: 1536,
//	        CacheSize:  1024,
//	    },
//	    LLM: core.LLMConfig{
//	        Provider: "openai",
//	        APIKey:   "sk-...",
//	    },
//	    Memory: core.MemoryConfig{DecayRate: 0.1, DefaultTopK: 3, NodeID: 1},
//	}
type Config struct {
	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder" yaml:"embedder"`

	// LLM contains LLM provider configuration. An empty provider disables Ingest.
	LLM LLMConfig `json:"llm" yaml:"llm"`

	// Memory contains memory pipeline configuration.
	Memory MemoryConfig `json:"memory" yaml:"memory"`

	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: hash, openai
type EmbedderConfig struct {
	// Provider is the embedding provider name (hash, openai).
	Provider string `json:"provider" yaml:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Model is the embedding model name (e.g., "text-embedding-3-small").
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Dimensions is the dimension of the embedding vectors (e.g., 256, 1536).
	Dimensions int `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`

	// CacheSize is the number of embeddings kept in memory. 0 disables the cache.
	CacheSize int64 `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
}

// LLMConfig contains configuration for the LLM provider used by extraction.
//
// Supported providers: openai, deepseek (and any OpenAI-compatible endpoint
// via BaseURL)
type LLMConfig struct {
	// Provider is the LLM provider name. Empty disables extraction.
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`

	// APIKey is the API key for the LLM provider.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Model is the model name to use (e.g., "gpt-4o-mini").
	Model string `json:"model,omitempty" yaml:"model,omitempty"`

	// BaseURL is the base URL for the API (optional, uses provider default if empty).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// MemoryConfig tunes the memory pipeline.
type MemoryConfig struct {
	// DecayRate is the share of importance lost per day, in (0, 1).
	DecayRate float64 `json:"decay_rate" yaml:"decay_rate"`

	// DefaultTopK is the number of results Recall returns when asked for 0.
	DefaultTopK int `json:"default_top_k" yaml:"default_top_k"`

	// NodeID is the snowflake node used for record IDs, in [0, 1023].
	NodeID int64 `json:"node_id" yaml:"node_id"`
}

// DefaultConfig returns a configuration that works offline: hash embeddings,
// no LLM, 10% daily decay and three search results.
func DefaultConfig() *Config {
	return &Config{
		Embedder: EmbedderConfig{
			Provider:   ProviderHash,
			Dimensions: 256,
			CacheSize:  1024,
		},
		Memory: MemoryConfig{
			DecayRate:   intelligence.DefaultDecayRate,
			DefaultTopK: 3,
			NodeID:      1,
		},
		LogLevel: "info",
	}
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for .env or .env.example files (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL, EMBEDDING_BASE_URL,
//     EMBEDDING_DIMS, EMBEDDING_CACHE_SIZE
//   - LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL
//   - MEMORY_DECAY_RATE, MEMORY_TOP_K, MEMORY_NODE_ID
//   - LOG_LEVEL
//
// Unset variables keep the values from DefaultConfig.
//
// Returns a Config instance, or an error if a numeric variable cannot be parsed.
//
// Example:
//
//	config, err := core.LoadConfigFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnv() (*Config, error) {
	// Use FindEnvFile to locate .env file (supports upward search)
	envPath, found := FindEnvFile()
	if found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	return configFromEnv()
}

// LoadConfigFromEnvFile loads configuration from a specific .env file.
//
// Parameters:
//   - envPath: Path to the .env file
//
// Returns a Config instance, or an error if loading fails.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, NewMemoryError("LoadConfigFromEnvFile", err)
	}
	return configFromEnv()
}

func configFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	cfg.Embedder.Provider = getEnvOrDefault("EMBEDDING_PROVIDER", cfg.Embedder.Provider)
	cfg.Embedder.APIKey = os.Getenv("EMBEDDING_API_KEY")
	cfg.Embedder.Model = os.Getenv("EMBEDDING_MODEL")
	cfg.Embedder.BaseURL = os.Getenv("EMBEDDING_BASE_URL")
	if cfg.Embedder.Provider == ProviderOpenAI {
		// OpenAI vectors are 1536 wide unless told otherwise.
		cfg.Embedder.Dimensions = 1536
		if cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = os.Getenv("OPENAI_EMBEDDING_BASE_URL")
		}
	}

	cfg.LLM = LLMConfig{
		Provider: os.Getenv("LLM_PROVIDER"),
		APIKey:   os.Getenv("LLM_API_KEY"),
		Model:    os.Getenv("LLM_MODEL"),
		BaseURL:  os.Getenv("LLM_BASE_URL"),
	}

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.Embedder.Dimensions, err = getEnvInt("EMBEDDING_DIMS", cfg.Embedder.Dimensions); err != nil {
		return nil, err
	}
	cacheSize, err := getEnvInt("EMBEDDING_CACHE_SIZE", int(cfg.Embedder.CacheSize))
	if err != nil {
		return nil, err
	}
	cfg.Embedder.CacheSize = int64(cacheSize)

	if cfg.Memory.DecayRate, err = getEnvFloat("MEMORY_DECAY_RATE", cfg.Memory.DecayRate); err != nil {
		return nil, err
	}
	if cfg.Memory.DefaultTopK, err = getEnvInt("MEMORY_TOP_K", cfg.Memory.DefaultTopK); err != nil {
		return nil, err
	}
	nodeID, err := getEnvInt("MEMORY_NODE_ID", int(cfg.Memory.NodeID))
	if err != nil {
		return nil, err
	}
	cfg.Memory.NodeID = int64(nodeID)

	return cfg, nil
}

// LoadConfigFromFile loads configuration from a YAML (.yaml, .yml) or JSON
// (.json) file. Fields missing from the file keep the values from DefaultConfig.
//
// Parameters:
//   - path: Path to the configuration file
//
// Returns a Config instance, or an error if loading or parsing fails.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromFile", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		err = fmt.Errorf("%w: unsupported config file extension %q", ErrInvalidConfig, filepath.Ext(path))
	}
	if err != nil {
		return nil, NewMemoryError("LoadConfigFromFile", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
//
// Checks that:
//   - the embedder provider is hash or openai, and openai has an API key
//   - the LLM provider is empty, openai or deepseek, and has an API key if set
//   - the decay rate lies in (0, 1), the default top-k is positive and the
//     node ID fits a snowflake node
//   - the log level is known
//
// Returns an error wrapping ErrInvalidConfig if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return NewMemoryError("Validate", err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Embedder.Provider {
	case ProviderHash:
	case ProviderOpenAI:
		if c.Embedder.APIKey == "" {
			return fmt.Errorf("%w: openai embedder requires an api key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported embedder provider %q", ErrInvalidConfig, c.Embedder.Provider)
	}
	if c.Embedder.Dimensions < 0 || c.Embedder.CacheSize < 0 {
		return fmt.Errorf("%w: embedder dimensions and cache size must not be negative", ErrInvalidConfig)
	}

	switch c.LLM.Provider {
	case "":
	case ProviderOpenAI, ProviderDeepSeek:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("%w: %s llm requires an api key", ErrInvalidConfig, c.LLM.Provider)
		}
	default:
		return fmt.Errorf("%w: unsupported llm provider %q", ErrInvalidConfig, c.LLM.Provider)
	}

	if c.Memory.DecayRate <= 0 || c.Memory.DecayRate >= 1 {
		return fmt.Errorf("%w: decay rate must be in (0, 1), got %v", ErrInvalidConfig, c.Memory.DecayRate)
	}
	if c.Memory.DefaultTopK < 1 {
		return fmt.Errorf("%w: default top-k must be positive, got %d", ErrInvalidConfig, c.Memory.DefaultTopK)
	}
	if c.Memory.NodeID < 0 || c.Memory.NodeID > 1023 {
		return fmt.Errorf("%w: node id must be in [0, 1023], got %d", ErrInvalidConfig, c.Memory.NodeID)
	}

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a level name to a slog.Level. Empty means info.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, level)
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, NewMemoryError("LoadConfigFromEnv", fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, value))
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, NewMemoryError("LoadConfigFromEnv", fmt.Errorf("%w: %s=%q", ErrInvalidConfig, key, value))
	}
	return f, nil
}

// FindEnvFile searches for .env or .env.example files.
//
// The search:
//  1. Checks the current directory
//  2. Searches up to 5 directory levels up
//  3. Returns the first .env or .env.example file found
//
// Returns:
//   - path: Path to the found file (empty if not found)
//   - found: True if a file was found, false otherwise
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
