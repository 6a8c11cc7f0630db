// Package config loads and validates codescout configuration.
//
// Configuration is layered: built-in defaults, then an optional YAML file
// (.codescout.yaml in the workspace root or an explicit path), then
// CODESCOUT_* environment variables with highest priority.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete codescout configuration.
type Config struct {
	// DataDir is the root directory for per-workspace index data.
	DataDir string `yaml:"data_dir"`

	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Store      StoreConfig      `yaml:"store"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Indexer    IndexerConfig    `yaml:"indexer"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// EmbeddingsConfig configures the embedding service client.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "http" (default) or "static" (offline, tests).
	Provider string `yaml:"provider"`
	// Endpoint is the Ollama-compatible embedding API base URL.
	Endpoint string `yaml:"endpoint"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions is the expected embedding dimensionality (0 = auto-detect).
	Dimensions int `yaml:"dimensions"`
	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size"`
	// CacheSize is the number of query embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size"`
	// TimeoutSeconds bounds each embedding request.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// MaxRetries is the number of attempts per embedding request.
	MaxRetries int `yaml:"max_retries"`
}

// StoreConfig configures the vector store.
type StoreConfig struct {
	// M is the HNSW max connections per layer.
	M int `yaml:"m"`
	// EfSearch is the HNSW query-time search width.
	EfSearch int `yaml:"ef_search"`
	// MetaContentBytes caps stored chunk content in metadata.
	MetaContentBytes int `yaml:"meta_content_bytes"`
}

// ChunkerConfig configures file chunking.
type ChunkerConfig struct {
	// MaxLines is the maximum lines per chunk before splitting.
	MaxLines int `yaml:"max_lines"`
}

// IndexerConfig configures the per-workspace indexer.
type IndexerConfig struct {
	// Workers bounds concurrent file chunking (0 = GOMAXPROCS).
	Workers int `yaml:"workers"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// TelemetryConfig configures the query-metrics store.
type TelemetryConfig struct {
	// Enabled turns on search telemetry recording.
	Enabled bool `yaml:"enabled"`
	// Path is the SQLite database path (defaults to <data_dir>/telemetry.db).
	Path string `yaml:"path"`
}

// Defaults mirrored by Validate when fields are zero.
const (
	DefaultEndpoint       = "http://localhost:11434"
	DefaultModel          = "nomic-embed-text"
	DefaultBatchSize      = 32
	DefaultCacheSize      = 1000
	DefaultTimeoutSeconds = 60
	DefaultMaxRetries     = 3
	DefaultMaxLines       = 200
	DefaultM              = 16
	DefaultEfSearch       = 64
	DefaultMetaContent    = 2048
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Embeddings: EmbeddingsConfig{
			Provider:       "http",
			Endpoint:       DefaultEndpoint,
			Model:          DefaultModel,
			BatchSize:      DefaultBatchSize,
			CacheSize:      DefaultCacheSize,
			TimeoutSeconds: DefaultTimeoutSeconds,
			MaxRetries:     DefaultMaxRetries,
		},
		Store: StoreConfig{
			M:                DefaultM,
			EfSearch:         DefaultEfSearch,
			MetaContentBytes: DefaultMetaContent,
		},
		Chunker: ChunkerConfig{MaxLines: DefaultMaxLines},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from path, applying defaults and env overrides.
// A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate fills zero fields with defaults and rejects invalid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "http"
	}
	switch c.Embeddings.Provider {
	case "http", "static":
	default:
		return fmt.Errorf("invalid embeddings provider %q (want http or static)", c.Embeddings.Provider)
	}
	if c.Embeddings.Endpoint == "" {
		c.Embeddings.Endpoint = DefaultEndpoint
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = DefaultModel
	}
	if c.Embeddings.BatchSize <= 0 {
		c.Embeddings.BatchSize = DefaultBatchSize
	}
	if c.Embeddings.CacheSize <= 0 {
		c.Embeddings.CacheSize = DefaultCacheSize
	}
	if c.Embeddings.TimeoutSeconds <= 0 {
		c.Embeddings.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.Embeddings.MaxRetries <= 0 {
		c.Embeddings.MaxRetries = DefaultMaxRetries
	}
	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("invalid embeddings dimensions %d", c.Embeddings.Dimensions)
	}
	if c.Store.M <= 0 {
		c.Store.M = DefaultM
	}
	if c.Store.EfSearch <= 0 {
		c.Store.EfSearch = DefaultEfSearch
	}
	if c.Store.MetaContentBytes <= 0 {
		c.Store.MetaContentBytes = DefaultMetaContent
	}
	if c.Chunker.MaxLines <= 0 {
		c.Chunker.MaxLines = DefaultMaxLines
	}
	if c.Indexer.Workers < 0 {
		return fmt.Errorf("invalid indexer workers %d", c.Indexer.Workers)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Telemetry.Enabled && c.Telemetry.Path == "" {
		c.Telemetry.Path = filepath.Join(c.DataDir, "telemetry.db")
	}
	return nil
}

// WorkspaceDir returns the persistence directory for a workspace.
func (c *Config) WorkspaceDir(workspaceID string) string {
	return filepath.Join(c.DataDir, sanitizeID(workspaceID))
}

// applyEnvOverrides applies CODESCOUT_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODESCOUT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CODESCOUT_EMBED_ENDPOINT"); v != "" {
		cfg.Embeddings.Endpoint = v
	}
	if v := os.Getenv("CODESCOUT_EMBED_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}
	if v := os.Getenv("CODESCOUT_EMBED_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := os.Getenv("CODESCOUT_EMBED_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Embeddings.BatchSize = n
		}
	}
	if v := os.Getenv("CODESCOUT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// sanitizeID makes a workspace id safe to use as a directory name.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codescout"
	}
	return filepath.Join(home, ".codescout")
}
