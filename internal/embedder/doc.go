// Package embedder generates vector embeddings for catalog chunks and
// questions.
//
// Three providers are available: Ollama (the default, calling
// /api/embeddings on a local server), any OpenAI-compatible /embeddings
// endpoint, and an offline feature-hashing provider for development.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  embedder.ProviderOllama,
//	    BaseURL:   "http://localhost:11434",
//	    Model:     "nomic-embed-text",
//	    Dimension: 768,
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "折疊擔架 承重 159kg",
//	})
//
// The model is a per-call argument: EmbeddingRequest.Model overrides the
// default without mutating the provider, so one embedder can be shared by
// concurrent requests using different models.
//
// # Dimensions
//
// Providers return whatever the model produces. Callers fit vectors to the
// configured dimension with Conform, which truncates longer vectors and
// rejects shorter ones with types.ErrDimensionMismatch.
//
// # Caching
//
// An in-memory LRU cache keyed by (model, text) sits inside each provider.
// Config.CachePath adds a persistent bbolt cache in front of the provider
// so re-ingesting unchanged text is free across restarts.
//
// # Retries
//
// The OpenAI-compatible provider retries with exponential backoff. Ollama
// requests are made once. WithoutRetry disables retries for a single call,
// which the retrieval path uses for query embedding.
//
// # Vector Literals
//
// FormatLiteral and ParseLiteral convert between []float32 and the text form
// "[v1,...,vn]" (six decimals) used for storage and vector queries.
package embedder
