// Package config loads Jeff's configuration: defaults, layered under an
// optional YAML file, layered under JEFF_* environment overrides. Provider
// API keys are resolved last, from the conventional environment variables
// or from key files in the data directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bdobrica/Jeff/common/environment"
)

// ConfigFileName is the default file looked up inside the data directory.
const ConfigFileName = "config.yaml"

// Config is the full runtime configuration.
type Config struct {
	// DataDir holds everything Jeff persists: the memory log, the vector
	// index artifacts, the chunk archive, the spend ledger, and key files.
	DataDir string `yaml:"data_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is text or json.
	LogFormat string `yaml:"log_format"`

	Memory    MemoryConfig    `yaml:"memory"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Spend     SpendConfig     `yaml:"spend"`

	// Provider API keys. Never read from YAML: resolved from the
	// environment or from key files next to the data.
	OpenAIKey string `yaml:"-"`
	GeminiKey string `yaml:"-"`
}

// MemoryConfig tunes the memory engine.
type MemoryConfig struct {
	// AllowWrite is the startup default for persistent memory writes.
	AllowWrite bool `yaml:"allow_write"`

	// MaxChunkChars caps chunk size in characters.
	MaxChunkChars int `yaml:"max_chunk_chars"`

	// SearchK is the default result count for recall searches.
	SearchK int `yaml:"search_k"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	// Provider is openai, gemini, or static (offline, deterministic).
	Provider string `yaml:"provider"`

	// Model overrides the provider's default embedding model.
	Model string `yaml:"model"`

	// Dims overrides the provider's native vector dimensionality.
	Dims int `yaml:"dims"`

	// CacheSize and CacheTTL tune the embedding LRU. CacheSize 0 disables
	// caching.
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	// MaxAttempts bounds retries for transient embedding failures.
	MaxAttempts int `yaml:"max_attempts"`
}

// ChatConfig tunes the brains and the router.
type ChatConfig struct {
	// DefaultModel is used when no model is selected explicitly.
	DefaultModel string `yaml:"default_model"`

	// Per-family model lists the router accepts.
	OpenAIModels []string `yaml:"openai_models"`
	GeminiModels []string `yaml:"gemini_models"`
	LocalModels  []string `yaml:"local_models"`

	// LocalURL is the Ollama-style server the local brain talks to.
	LocalURL string `yaml:"local_url"`

	// ContextHits is how many memory hits brains inject into the prompt;
	// ContextChars bounds the rendered block.
	ContextHits  int `yaml:"context_hits"`
	ContextChars int `yaml:"context_chars"`
}

// SpendConfig tunes the daily budget.
type SpendConfig struct {
	// DailyLimitUSD is the hard daily cap across all metered calls.
	DailyLimitUSD float64 `yaml:"daily_limit_usd"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:   defaultDataDir(),
		LogLevel:  "info",
		LogFormat: "text",
		Memory: MemoryConfig{
			AllowWrite:    true,
			MaxChunkChars: 600,
			SearchK:       5,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			CacheSize:   512,
			CacheTTL:    time.Hour,
			MaxAttempts: 3,
		},
		Chat: ChatConfig{
			DefaultModel: "gpt-4.1",
			OpenAIModels: []string{"gpt-4.1", "gpt-4o", "gpt-4o-mini"},
			GeminiModels: []string{"gemini-1.5-pro", "gemini-1.5-flash"},
			LocalModels:  []string{"mistral", "phi-3-mini", "llama"},
			LocalURL:     "http://localhost:11434",
			ContextHits:  3,
			ContextChars: 2000,
		},
		Spend: SpendConfig{
			DailyLimitUSD: 2.00,
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("JEFF_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".jeff")
}

// Load builds the configuration: defaults, then the YAML file at path (or
// <data-dir>/config.yaml when path is empty; a missing file is fine), then
// JEFF_* environment overrides, then key resolution. The result is
// validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, ConfigFileName)
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// defaults + env only
	case err != nil:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	resolveKeys(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DataDir = environment.StringOr("JEFF_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = environment.StringOr("JEFF_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = environment.StringOr("JEFF_LOG_FORMAT", cfg.LogFormat)

	cfg.Memory.AllowWrite = environment.BoolOr("JEFF_ALLOW_WRITE", cfg.Memory.AllowWrite)
	cfg.Memory.MaxChunkChars = environment.IntOr("JEFF_MAX_CHUNK_CHARS", cfg.Memory.MaxChunkChars)
	cfg.Memory.SearchK = environment.IntOr("JEFF_SEARCH_K", cfg.Memory.SearchK)

	cfg.Embedding.Provider = environment.StringOr("JEFF_EMBED_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.Model = environment.StringOr("JEFF_EMBED_MODEL", cfg.Embedding.Model)
	cfg.Embedding.Dims = environment.IntOr("JEFF_EMBED_DIMS", cfg.Embedding.Dims)
	cfg.Embedding.CacheSize = environment.IntOr("JEFF_CACHE_SIZE", cfg.Embedding.CacheSize)
	cfg.Embedding.CacheTTL = environment.DurationOr("JEFF_CACHE_TTL", cfg.Embedding.CacheTTL)
	cfg.Embedding.MaxAttempts = environment.IntOr("JEFF_EMBED_MAX_ATTEMPTS", cfg.Embedding.MaxAttempts)

	cfg.Chat.DefaultModel = environment.StringOr("JEFF_CHAT_MODEL", cfg.Chat.DefaultModel)
	cfg.Chat.OpenAIModels = environment.StringSliceOr("JEFF_OPENAI_MODELS", cfg.Chat.OpenAIModels)
	cfg.Chat.GeminiModels = environment.StringSliceOr("JEFF_GEMINI_MODELS", cfg.Chat.GeminiModels)
	cfg.Chat.LocalModels = environment.StringSliceOr("JEFF_LOCAL_MODELS", cfg.Chat.LocalModels)
	cfg.Chat.LocalURL = environment.StringOr("JEFF_LOCAL_URL", cfg.Chat.LocalURL)
	cfg.Chat.ContextHits = environment.IntOr("JEFF_CONTEXT_HITS", cfg.Chat.ContextHits)
	cfg.Chat.ContextChars = environment.IntOr("JEFF_CONTEXT_CHARS", cfg.Chat.ContextChars)

	cfg.Spend.DailyLimitUSD = environment.Float64Or("JEFF_DAILY_LIMIT_USD", cfg.Spend.DailyLimitUSD)
}

// resolveKeys fills the provider keys: environment first, then the
// conventional key file in the data directory.
func resolveKeys(cfg *Config) {
	cfg.OpenAIKey = environment.StringOr("OPENAI_API_KEY",
		readKeyFile(filepath.Join(cfg.DataDir, "openai_key.txt")))
	cfg.GeminiKey = environment.StringOr("GEMINI_API_KEY",
		readKeyFile(filepath.Join(cfg.DataDir, "gemini_key.txt")))
}

func readKeyFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Validate checks the configuration for values the engine cannot run with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format %q is not one of text, json", c.LogFormat)
	}
	if c.Memory.MaxChunkChars <= 0 {
		return fmt.Errorf("config: memory.max_chunk_chars must be positive, got %d", c.Memory.MaxChunkChars)
	}
	if c.Memory.SearchK <= 0 {
		return fmt.Errorf("config: memory.search_k must be positive, got %d", c.Memory.SearchK)
	}
	switch c.Embedding.Provider {
	case "openai", "gemini", "static":
	default:
		return fmt.Errorf("config: embedding.provider %q is not one of openai, gemini, static", c.Embedding.Provider)
	}
	if c.Embedding.Dims < 0 {
		return fmt.Errorf("config: embedding.dims must not be negative, got %d", c.Embedding.Dims)
	}
	if c.Chat.DefaultModel == "" {
		return fmt.Errorf("config: chat.default_model must not be empty")
	}
	if c.Chat.ContextHits <= 0 {
		return fmt.Errorf("config: chat.context_hits must be positive, got %d", c.Chat.ContextHits)
	}
	if c.Spend.DailyLimitUSD <= 0 {
		return fmt.Errorf("config: spend.daily_limit_usd must be positive, got %.2f", c.Spend.DailyLimitUSD)
	}
	return nil
}
