package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dshills/equiprag/internal/lexical"
)

// Provider configuration
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "local-hashing"

	// Default endpoints
	DefaultOllamaURL = "http://localhost:11434"
	DefaultOpenAIURL = "https://api.openai.com/v1"

	// Dimensions
	OllamaDimension = 768
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Timeouts
	DefaultTimeout = 30 * time.Second

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// ProviderConfig holds the settings shared by the HTTP providers
type ProviderConfig struct {
	BaseURL   string
	Model     string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

func (c ProviderConfig) withDefaults(baseURL, model string, dim int) ProviderConfig {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = model
	}
	if c.Dimension <= 0 {
		c.Dimension = dim
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// OllamaProvider implements Embedder using a local Ollama server
type OllamaProvider struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
}

// NewOllamaProvider creates an Ollama embedder. Requests are made once; an
// unreachable server surfaces immediately as ErrProviderFailed.
func NewOllamaProvider(cfg ProviderConfig, cache *Cache) *OllamaProvider {
	cfg = cfg.withDefaults(DefaultOllamaURL, DefaultOllamaModel, OllamaDimension)
	return &OllamaProvider{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
	}
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	hash := ComputeHash(model, req.Text)
	if o.cache != nil {
		if emb, ok := o.cache.Get(hash); ok {
			return emb, nil
		}
	}

	vector, err := o.callAPI(ctx, req.Text, model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: len(vector),
		Provider:  ProviderOllama,
		Model:     model,
		Hash:      hash,
	}
	if o.cache != nil {
		o.cache.Set(hash, emb)
	}
	return emb, nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, text, model string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{
		"model":  model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for model %s", model)
	}

	vector := make([]float32, len(apiResp.Embedding))
	for i, v := range apiResp.Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

// GenerateBatch embeds texts one by one; Ollama has no batch endpoint
func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}
	return embedEach(ctx, o, req)
}

func (o *OllamaProvider) Dimension() int {
	return o.dimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder using an OpenAI-compatible
// /embeddings endpoint (OpenAI, Jina, LocalAI and similar)
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// NewOpenAIProvider creates an OpenAI-compatible embedder
func NewOpenAIProvider(cfg ProviderConfig, cache *Cache) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	cfg = cfg.withDefaults(DefaultOpenAIURL, DefaultOpenAIModel, OpenAIDimension)

	return &OpenAIProvider{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
		retry:      DefaultRetryConfig(),
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	hash := ComputeHash(model, req.Text)
	if o.cache != nil {
		if emb, ok := o.cache.Get(hash); ok {
			return emb, nil
		}
	}

	// Use batch API for consistency
	resp, err := o.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = o.model
	}

	embeddings, err := retryWithBackoff(ctx, o.retry, func() ([]*Embedding, error) {
		return o.callAPI(ctx, req.Texts, model)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	if len(embeddings) != len(req.Texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(embeddings), len(req.Texts))
	}

	for i, emb := range embeddings {
		emb.Model = model
		emb.Hash = ComputeHash(model, req.Texts[i])
		if o.cache != nil {
			o.cache.Set(emb.Hash, emb)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOpenAI,
		Model:      model,
	}, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		idx := data.Index
		if idx < 0 || idx >= len(embeddings) || embeddings[idx] != nil {
			idx = i
		}
		embeddings[idx] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  ProviderOpenAI,
		}
	}

	return embeddings, nil
}

func (o *OpenAIProvider) Dimension() int {
	return o.dimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider embeds text offline with the hashing trick: every lexical
// term is hashed into one of dimension buckets with a hash-derived sign, and
// the result is L2 normalized. Texts sharing terms land close together,
// which is enough for development and tests without a model server.
type LocalProvider struct {
	model     string
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a local hashing embedder
func NewLocalProvider(dimension int, cache *Cache) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{
		model:     DefaultLocalModel,
		dimension: dimension,
		cache:     cache,
	}
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(l.model, req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    hashVector(req.Text, l.dimension),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}

	return emb, nil
}

// hashVector builds the feature-hashed vector for text. Text without any
// lexical term falls back to bytes of its SHA-256 digest so the vector is
// never all zeros.
func hashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)

	terms := lexical.Tokenize(text)
	for _, term := range terms {
		h := fnv.New64a()
		_, _ = h.Write([]byte(term))
		sum := h.Sum64()
		idx := int(sum % uint64(dim))
		if sum&(1<<63) != 0 {
			vector[idx] -= 1
		} else {
			vector[idx] += 1
		}
	}

	if len(terms) == 0 {
		digest := sha256.Sum256([]byte(text))
		for i := 0; i < dim; i++ {
			vector[i] = float32(digest[i%len(digest)])/255.0 + 0.01
		}
	}

	return NormalizeVector(vector)
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	return embedEach(ctx, l, req)
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}
