package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dshills/equiprag/config"
	"github.com/dshills/equiprag/internal/chunker"
	"github.com/dshills/equiprag/internal/embedder"
	"github.com/dshills/equiprag/internal/indexer"
	"github.com/dshills/equiprag/internal/llm"
	"github.com/dshills/equiprag/internal/retriever"
	"github.com/dshills/equiprag/internal/storage"
)

// app is the wired service graph shared by the commands. The embedder is
// shared between indexer and retriever so both hit the same cache.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     storage.Store
	embedder  embedder.Embedder
	llm       *llm.Client
	retriever *retriever.Retriever
	indexer   *indexer.Indexer
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := storage.Open(ctx, storage.Config{
		Driver:    cfg.Storage.Driver,
		Path:      cfg.Storage.Path,
		DSN:       cfg.Storage.DSN,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	emb, err := embedder.New(embedderConfig(cfg))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	gen := llm.New(llm.Config{
		BaseURL:      cfg.Ollama.Host,
		DefaultModel: cfg.Ollama.Model,
		Timeout:      cfg.OllamaTimeout(),
	})

	ret := retriever.New(store, emb, gen, retriever.Options{
		TopK:           cfg.Retrieval.TopK,
		BM25K:          cfg.Retrieval.BM25K,
		VectorK:        cfg.Retrieval.VectorK,
		RerankK:        cfg.Retrieval.RerankK,
		Weights:        retriever.Weights{Lexical: cfg.Retrieval.LexicalWeight, Vector: cfg.Retrieval.VectorWeight},
		Dimension:      cfg.Embedding.Dimension,
		EmbeddingModel: cfg.Embedding.Model,
		RerankModel:    cfg.Retrieval.RerankModel,
		SearchTimeout:  cfg.SearchTimeout(),
		Brands:         cfg.Retrieval.Brands,
		CacheResults:   cfg.Retrieval.CacheResults,
		CacheSize:      cfg.Retrieval.CacheSize,
		CacheTTL:       cfg.CacheTTL(),
		Logger:         logger,
	})
	ret.WithReranker(retriever.NewReranker(gen, cfg.OllamaTimeout(), cfg.Retrieval.RerankConcurrency, logger))

	idx := indexer.New(store, emb, indexer.Config{
		Workers:        cfg.Embedding.Workers,
		Dimension:      cfg.Embedding.Dimension,
		EmbeddingModel: cfg.Embedding.Model,
		EmbedTimeout:   cfg.EmbedTimeout(),
		Chunking:       chunker.Options{MaxChars: cfg.Chunking.MaxChars, Overlap: cfg.Chunking.Overlap},
		Logger:         logger,
		Cache:          ret,
	})

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		embedder:  emb,
		llm:       gen,
		retriever: ret,
		indexer:   idx,
	}, nil
}

func embedderConfig(cfg *config.Config) embedder.Config {
	ec := embedder.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   cfg.EmbedTimeout(),
		CacheSize: cfg.Embedding.CacheSize,
		CachePath: cfg.Embedding.CachePath,
	}
	if ec.BaseURL == "" && (ec.Provider == "" || ec.Provider == embedder.ProviderOllama) {
		ec.BaseURL = cfg.Ollama.Host
	}
	if cfg.Embedding.APIKeyEnv != "" {
		ec.APIKey = os.Getenv(cfg.Embedding.APIKeyEnv)
	}
	return ec
}

func (a *app) chunkMode(override string) (chunker.Mode, error) {
	name := override
	if name == "" {
		name = a.cfg.Chunking.Mode
	}
	mode, ok := chunker.ParseMode(name)
	if !ok {
		return "", fmt.Errorf("unsupported chunking mode: %s", name)
	}
	return mode, nil
}

func (a *app) Close() error {
	embErr := a.embedder.Close()
	if err := a.store.Close(); err != nil {
		return err
	}
	return embErr
}
