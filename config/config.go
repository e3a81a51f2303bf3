// Package config loads equiprag configuration from YAML or TOML files with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables applied by ApplyEnv
const (
	EnvDBPath            = "EQUIPRAG_DB_PATH"
	EnvDBDriver          = "EQUIPRAG_DB_DRIVER"
	EnvDBDSN             = "EQUIPRAG_DB_DSN"
	EnvOllamaHost        = "OLLAMA_HOST"
	EnvOllamaModel       = "OLLAMA_MODEL"
	EnvOllamaTimeout     = "OLLAMA_TIMEOUT"
	EnvEmbeddingProvider = "EQUIPRAG_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "EQUIPRAG_EMBEDDING_MODEL"
	EnvEmbeddingDim      = "EQUIPRAG_EMBEDDING_DIM"
	EnvTopK              = "EQUIPRAG_TOP_K"
	EnvRerankModel       = "EQUIPRAG_RERANK_MODEL"
	EnvLogLevel          = "EQUIPRAG_LOG_LEVEL"
	EnvAddr              = "EQUIPRAG_ADDR"
)

// DefaultFileName is looked up by LoadFromDir
const DefaultFileName = "equiprag.yaml"

// Config holds all configuration for equiprag.
type Config struct {
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Ollama    OllamaConfig    `yaml:"ollama" toml:"ollama"`
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking" toml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`
	Index     IndexConfig     `yaml:"index" toml:"index"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// StorageConfig selects the chunk store.
type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path" toml:"path"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// OllamaConfig holds the generation server settings.
type OllamaConfig struct {
	Host           string `yaml:"host" toml:"host"`
	Model          string `yaml:"model" toml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider" toml:"provider"` // "ollama", "openai", "local"
	Model          string `yaml:"model" toml:"model"`
	BaseURL        string `yaml:"base_url" toml:"base_url"` // empty means the Ollama host for the ollama provider
	APIKeyEnv      string `yaml:"api_key_env" toml:"api_key_env"`
	Dimension      int    `yaml:"dimension" toml:"dimension"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
	Workers        int    `yaml:"workers" toml:"workers"`
	CacheSize      int    `yaml:"cache_size" toml:"cache_size"`
	CachePath      string `yaml:"cache_path" toml:"cache_path"`
}

// ChunkingConfig holds segmenter settings.
type ChunkingConfig struct {
	MaxChars int    `yaml:"max_chars" toml:"max_chars"`
	Overlap  int    `yaml:"overlap" toml:"overlap"`
	Mode     string `yaml:"mode" toml:"mode"` // "catalog" or "generic"
}

// RetrievalConfig holds hybrid retrieval settings.
type RetrievalConfig struct {
	TopK                 int      `yaml:"top_k" toml:"top_k"`
	BM25K                int      `yaml:"bm25_k" toml:"bm25_k"`
	VectorK              int      `yaml:"vector_k" toml:"vector_k"`
	RerankK              int      `yaml:"rerank_k" toml:"rerank_k"`
	LexicalWeight        float64  `yaml:"lexical_weight" toml:"lexical_weight"`
	VectorWeight         float64  `yaml:"vector_weight" toml:"vector_weight"`
	RerankModel          string   `yaml:"rerank_model" toml:"rerank_model"` // empty disables reranking
	RerankConcurrency    int      `yaml:"rerank_concurrency" toml:"rerank_concurrency"`
	SearchTimeoutSeconds int      `yaml:"search_timeout_seconds" toml:"search_timeout_seconds"`
	CacheResults         bool     `yaml:"cache_results" toml:"cache_results"` // off: every call embeds and searches
	CacheSize            int      `yaml:"cache_size" toml:"cache_size"`
	CacheTTLSeconds      int      `yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"`
	Brands               []string `yaml:"brands" toml:"brands"`
}

// IndexConfig holds directory ingestion filters.
type IndexConfig struct {
	Includes []string `yaml:"includes" toml:"includes"`
	Excludes []string `yaml:"excludes" toml:"excludes"`
}

// ServerConfig holds REST server settings.
type ServerConfig struct {
	Addr      string  `yaml:"addr" toml:"addr"`
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"` // requests per second, 0 disables
	Burst     int     `yaml:"burst" toml:"burst"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "text" or "json"
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "equiprag.db",
		},
		Ollama: OllamaConfig{
			Host:           "http://localhost:11434",
			Model:          "llama3.2",
			TimeoutSeconds: 120,
		},
		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			Model:          "nomic-embed-text",
			APIKeyEnv:      "OPENAI_API_KEY",
			Dimension:      768,
			TimeoutSeconds: 30,
			Workers:        4,
			CacheSize:      10000,
		},
		Chunking: ChunkingConfig{
			MaxChars: 1200,
			Overlap:  200,
			Mode:     "catalog",
		},
		Retrieval: RetrievalConfig{
			TopK:                 5,
			BM25K:                20,
			VectorK:              20,
			RerankK:              10,
			LexicalWeight:        0.5,
			VectorWeight:         0.5,
			RerankConcurrency:    4,
			SearchTimeoutSeconds: 30,
			CacheSize:            1000,
			CacheTTLSeconds:      600,
			Brands:               []string{"ferno"},
		},
		Index: IndexConfig{
			Includes: []string{"**/*.txt", "**/*.md"},
			Excludes: []string{"**/.*", "**/.*/**"},
		},
		Server: ServerConfig{
			Addr:      ":8080",
			RateLimit: 20,
			Burst:     40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML or TOML file, chosen by extension.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromDir loads equiprag.yaml or equiprag.toml from dir, falling back to
// the defaults.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range []string{DefaultFileName, "equiprag.toml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return DefaultConfig(), nil
}

// Save writes the configuration in the format implied by the extension.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// ApplyEnv overlays environment variables onto c. Unset variables leave the
// file or default value in place.
func (c *Config) ApplyEnv() error {
	setString(&c.Storage.Path, EnvDBPath)
	setString(&c.Storage.Driver, EnvDBDriver)
	setString(&c.Storage.DSN, EnvDBDSN)
	setString(&c.Ollama.Host, EnvOllamaHost)
	setString(&c.Ollama.Model, EnvOllamaModel)
	setString(&c.Embedding.Provider, EnvEmbeddingProvider)
	setString(&c.Embedding.Model, EnvEmbeddingModel)
	setString(&c.Retrieval.RerankModel, EnvRerankModel)
	setString(&c.Logging.Level, EnvLogLevel)
	setString(&c.Server.Addr, EnvAddr)

	var errs []error
	for name, dst := range map[string]*int{
		EnvOllamaTimeout: &c.Ollama.TimeoutSeconds,
		EnvEmbeddingDim:  &c.Embedding.Dimension,
		EnvTopK:          &c.Retrieval.TopK,
	} {
		if err := setInt(dst, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func setString(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, name string) error {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", name, v)
	}
	*dst = n
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DSN == "" {
			add("storage.dsn is required for the postgres driver")
		}
	default:
		add("storage.driver %q must be sqlite or postgres", c.Storage.Driver)
	}

	switch c.Embedding.Provider {
	case "ollama", "openai", "local":
	default:
		add("embedding.provider %q must be ollama, openai or local", c.Embedding.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		add("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}

	if c.Chunking.MaxChars <= 0 {
		add("chunking.max_chars must be positive, got %d", c.Chunking.MaxChars)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxChars {
		add("chunking.overlap must be in [0, max_chars), got %d", c.Chunking.Overlap)
	}
	switch c.Chunking.Mode {
	case "", "catalog", "generic":
	default:
		add("chunking.mode %q must be catalog or generic", c.Chunking.Mode)
	}

	r := c.Retrieval
	if r.TopK <= 0 || r.BM25K <= 0 || r.VectorK <= 0 || r.RerankK <= 0 {
		add("retrieval.top_k, bm25_k, vector_k and rerank_k must be positive")
	}
	if r.LexicalWeight < 0 || r.VectorWeight < 0 || r.LexicalWeight+r.VectorWeight == 0 {
		add("retrieval weights must be non-negative and not both zero")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("logging.level %q is not a known level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		add("logging.format %q must be text or json", c.Logging.Format)
	}

	return errors.Join(errs...)
}

// OllamaTimeout returns the generation timeout
func (c *Config) OllamaTimeout() time.Duration {
	return seconds(c.Ollama.TimeoutSeconds)
}

// EmbedTimeout returns the per-request embedding timeout
func (c *Config) EmbedTimeout() time.Duration {
	return seconds(c.Embedding.TimeoutSeconds)
}

// SearchTimeout returns the sub-search timeout
func (c *Config) SearchTimeout() time.Duration {
	return seconds(c.Retrieval.SearchTimeoutSeconds)
}

// CacheTTL returns the result cache lifetime
func (c *Config) CacheTTL() time.Duration {
	return seconds(c.Retrieval.CacheTTLSeconds)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
