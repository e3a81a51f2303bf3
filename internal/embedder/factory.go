package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Environment variables read by providers when no key is configured
const (
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	Dimension int
	Timeout   time.Duration

	// CacheSize bounds the in-memory LRU cache; 0 disables it
	CacheSize int

	// CachePath enables the persistent bbolt cache when set
	CachePath string
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	pc := ProviderConfig{
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		Dimension: cfg.Dimension,
		Timeout:   cfg.Timeout,
	}

	var (
		emb Embedder
		err error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOllama:
		emb = NewOllamaProvider(pc, cache)
	case ProviderOpenAI:
		emb, err = NewOpenAIProvider(pc, cache)
	case ProviderLocal:
		emb = NewLocalProvider(cfg.Dimension, cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CachePath == "" {
		return emb, nil
	}

	persistent, err := NewPersistentCache(cfg.CachePath, emb)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}
	return persistent, nil
}
