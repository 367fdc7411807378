package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"legalrag/internal/domain"
)

const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
)

// Config holds all configuration for legalrag.
type Config struct {
	Chunk      ChunkConfig      `yaml:"chunk"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Store      StoreConfig      `yaml:"store"`
	Server     ServerConfig     `yaml:"server"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkConfig holds chunking configuration. Both values count characters.
type ChunkConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider    string        `yaml:"provider"`    // "openai", "deepseek", "jina", "ollama", "compatible", "mock"
	Model       string        `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv   string        `yaml:"api_key_env"` // Environment variable for API key
	BaseURL     string        `yaml:"base_url"`
	Dimension   int           `yaml:"dimension"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	CacheSize   int           `yaml:"cache_size"` // 0 disables the cache
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// GenerationConfig holds answer generation configuration.
type GenerationConfig struct {
	Provider    string        `yaml:"provider"` // "openai", "deepseek", "ollama", "mock"
	Model       string        `yaml:"model"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// AnalysisConfig holds document analysis configuration.
type AnalysisConfig struct {
	MaxChars  int `yaml:"max_chars"`
	MaxTokens int `yaml:"max_tokens"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "memory" or "bolt"
	Path    string `yaml:"path"`
}

// ServerConfig holds HTTP gateway configuration.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	FrontendURL string `yaml:"frontend_url"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

// IngestConfig holds the file patterns used by the ingest command.
type IngestConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunk: ChunkConfig{
			Size:    1000,
			Overlap: 100,
		},
		Retrieve: RetrieveConfig{
			TopK: 3,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "text-embedding-3-small",
			APIKeyEnv:   "OPENAI_API_KEY",
			Dimension:   1536,
			Timeout:     60 * time.Second,
			Concurrency: 1,
			CacheSize:   1000,
			CacheTTL:    time.Hour,
		},
		Generation: GenerationConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   1024,
			Temperature: 0.1,
			Timeout:     120 * time.Second,
		},
		Analysis: AnalysisConfig{
			MaxChars:  30000,
			MaxTokens: 2048,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			Path:    filepath.Join(".legalrag", "vectors.db"),
		},
		Server: ServerConfig{
			Addr:        ":8000",
			FrontendURL: "http://localhost:3000",
			MaxUploadMB: 10,
		},
		Ingest: IngestConfig{
			Includes: []string{"**/*.pdf", "**/*.txt", "**/*.md"},
			Excludes: []string{"**/.git/**", "**/.legalrag/**", "**/node_modules/**"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for legalrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "legalrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".legalrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides server settings from PORT and FRONTEND_URL.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if port := getenv("PORT"); port != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if url := getenv("FRONTEND_URL"); url != "" {
		c.Server.FrontendURL = url
	}
}

var (
	embeddingProviders  = []string{"openai", "deepseek", "jina", "ollama", "compatible", "mock"}
	generationProviders = []string{"openai", "deepseek", "ollama", "mock"}
	logLevels           = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Chunk.Overlap < 0 || c.Chunk.Size <= c.Chunk.Overlap {
		return fmt.Errorf("%w: size=%d overlap=%d", domain.ErrInvalidConfiguration, c.Chunk.Size, c.Chunk.Overlap)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK)
	}
	if !contains(embeddingProviders, c.Embedding.Provider) {
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	if !contains(generationProviders, c.Generation.Provider) {
		return fmt.Errorf("unsupported generation provider: %s", c.Generation.Provider)
	}
	if c.Embedding.Concurrency < 0 {
		return fmt.Errorf("embedding.concurrency must not be negative, got %d", c.Embedding.Concurrency)
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the bolt backend")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}
	if _, ok := logLevels[strings.ToLower(c.Logging.Level)]; !ok {
		return fmt.Errorf("unsupported log level: %s", c.Logging.Level)
	}
	return nil
}

// NewLogger builds a text logger at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, ok := logLevels[strings.ToLower(c.Logging.Level)]
	if !ok {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// StorePath resolves the bolt store path against a working directory.
func (c *Config) StorePath(dir string) string {
	if filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(dir, c.Store.Path)
}

// EnsureStoreDir ensures the directory holding the bolt store exists.
func EnsureStoreDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
