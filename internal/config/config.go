// Package config provides configuration loading and structs for bayan.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Vector     VectorConfig     `yaml:"vector"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Prompt     PromptConfig     `yaml:"prompt"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	TimeoutSeconds int    `yaml:"timeout_secs"`
}

// PathsConfig holds the input text directory, the saved index and the catalog database.
type PathsConfig struct {
	TextDir      string `yaml:"text_dir"`
	IndexDir     string `yaml:"index_dir"`
	DatabasePath string `yaml:"database_path"`
}

// ChunkingConfig holds chunker settings. Sizes are in characters.
type ChunkingConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	Overlap      *int   `yaml:"overlap"`
	MinChunkSize *int   `yaml:"min_chunk_size"`
	Pattern      string `yaml:"pattern"`
}

// OverlapOrDefault returns the overlap; defaults to 128 when unset.
func (c *ChunkingConfig) OverlapOrDefault() int {
	if c.Overlap != nil {
		return *c.Overlap
	}
	return 128
}

// MinChunkSizeOrDefault returns the minimum chunk size; defaults to 100 when unset.
func (c *ChunkingConfig) MinChunkSizeOrDefault() int {
	if c.MinChunkSize != nil {
		return *c.MinChunkSize
	}
	return 100
}

// Embedding providers.
const (
	ProviderONNX = "onnx"
	ProviderHTTP = "http"
	ProviderHash = "hash"
)

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider     string `yaml:"provider"`
	ModelPath    string `yaml:"model_path"`
	OutputName   string `yaml:"output_name"`
	Pooling      string `yaml:"pooling"`
	TokenTypeIDs bool   `yaml:"token_type_ids"`
	Dimensions   int    `yaml:"dimensions"`
	MaxTokens    int    `yaml:"max_tokens"`
	CacheSize    int    `yaml:"cache_size"`
	BatchSize    int    `yaml:"batch_size"`
	Concurrency  int    `yaml:"concurrency"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	APIKeyEnv    string `yaml:"api_key_env"`
	TimeoutSecs  int    `yaml:"timeout_secs"`
}

// APIKey reads the embedding API key from the configured environment variable.
func (e *EmbeddingConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// Timeout returns the HTTP embedder timeout.
func (e *EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// VectorConfig selects the vector index implementation.
type VectorConfig struct {
	IndexType string `yaml:"index_type"`
}

// RetrievalConfig holds ranking settings.
type RetrievalConfig struct {
	TopK     int      `yaml:"top_k"`
	MinScore *float64 `yaml:"min_score"`
}

// MinScoreOrDefault returns the score threshold; defaults to 0.3 when unset.
func (r *RetrievalConfig) MinScoreOrDefault() float64 {
	if r.MinScore != nil {
		return *r.MinScore
	}
	return 0.3
}

// GenerationConfig holds generation API settings.
type GenerationConfig struct {
	BaseURL           string   `yaml:"base_url"`
	Model             string   `yaml:"model"`
	APIKeyEnv         string   `yaml:"api_key_env"`
	MaxTokens         int      `yaml:"max_tokens"`
	Temperature       *float64 `yaml:"temperature"`
	TimeoutSecs       int      `yaml:"timeout_secs"`
	StreamTimeoutSecs int      `yaml:"stream_timeout_secs"`
	MaxAttempts       int      `yaml:"max_attempts"`
	BaseDelayMS       int      `yaml:"base_delay_ms"`
	MaxDelayMS        int      `yaml:"max_delay_ms"`
	RequestsPerSecond float64  `yaml:"requests_per_second"`
	Referer           string   `yaml:"referer"`
	Title             string   `yaml:"title"`
}

// APIKey reads the generation API key from the configured environment variable.
func (g *GenerationConfig) APIKey() string {
	return os.Getenv(g.APIKeyEnv)
}

// TemperatureOrDefault returns the sampling temperature; defaults to 0.7 when unset.
func (g *GenerationConfig) TemperatureOrDefault() float64 {
	if g.Temperature != nil {
		return *g.Temperature
	}
	return 0.7
}

// PromptConfig holds the answer prompt. An empty template uses the built-in one.
type PromptConfig struct {
	Template string `yaml:"template"`
}

// WatchConfig holds text directory watch settings.
type WatchConfig struct {
	Enabled    bool `yaml:"enabled"`
	DebounceMS int  `yaml:"debounce_ms"`
}

// Debounce returns the quiet period before a rebuild.
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	expandPaths(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// Default returns the default configuration with "./" paths resolved against baseDir.
func Default(baseDir string) *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	expandPaths(&cfg, baseDir)
	return &cfg
}

// LoadEnv loads .env files into the environment without overriding variables
// that are already set. Missing files are ignored; with no arguments ./.env is
// tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func expandPaths(cfg *Config, configDir string) {
	cfg.Paths.TextDir = expandPath(cfg.Paths.TextDir, configDir)
	cfg.Paths.IndexDir = expandPath(cfg.Paths.IndexDir, configDir)
	cfg.Paths.DatabasePath = expandPath(cfg.Paths.DatabasePath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
