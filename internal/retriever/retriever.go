package retriever

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/equiprag/internal/embedder"
	"github.com/dshills/equiprag/internal/llm"
	"github.com/dshills/equiprag/internal/storage"
	"github.com/dshills/equiprag/pkg/types"
)

// SearchMode defines how candidates are gathered
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Lexical + vector with score fusion
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // Lexical only, no embedding call
)

// ParseMode validates a mode name; "" selects hybrid
func ParseMode(s string) (SearchMode, error) {
	switch m := SearchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SearchModeHybrid, nil
	case SearchModeHybrid, SearchModeVector, SearchModeKeyword:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported search mode: %s", s)
	}
}

const (
	DefaultTopK          = 5
	DefaultBM25K         = 20
	DefaultVectorK       = 20
	DefaultRerankK       = 10
	DefaultSearchTimeout = 30 * time.Second
	DefaultCacheSize     = 1000
	DefaultCacheTTL      = 10 * time.Minute

	maxTopK = 100
)

// Options configures a Retriever. Zero values take the defaults above.
type Options struct {
	TopK    int
	BM25K   int
	VectorK int
	RerankK int

	Weights Weights

	// Dimension is the indexed vector size; query vectors are conformed to it
	Dimension int

	// EmbeddingModel overrides the embedder's default model
	EmbeddingModel string

	// RerankModel enables LLM reranking when non-empty
	RerankModel string

	// SearchTimeout bounds the query embedding and each sub-search
	SearchTimeout time.Duration

	// Brands are matched as brand hints in questions
	Brands []string

	// CacheResults enables the result cache for requests with UseCache set.
	// Cache hits skip the query embedding and both sub-searches.
	CacheResults bool
	CacheSize    int
	CacheTTL     time.Duration

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.BM25K <= 0 {
		o.BM25K = DefaultBM25K
	}
	if o.VectorK <= 0 {
		o.VectorK = DefaultVectorK
	}
	if o.RerankK <= 0 {
		o.RerankK = DefaultRerankK
	}
	if o.Weights == (Weights{}) {
		o.Weights = DefaultWeights
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = DefaultSearchTimeout
	}
	if o.Brands == nil {
		o.Brands = DefaultBrands
	}
	if o.CacheSize <= 0 {
		o.CacheSize = DefaultCacheSize
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultCacheTTL
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Request is a single retrieval
type Request struct {
	Question string
	TopK     int
	Mode     SearchMode

	// RerankModel overrides the configured rerank model for this call
	RerankModel string

	UseCache bool
}

// Response contains ordered results and how they were produced
type Response struct {
	Results     []types.RetrievalResult
	SearchMode  SearchMode
	Duration    time.Duration
	CacheHit    bool
	LexicalHits int
	VectorHits  int
	Reranked    int
	Intents     []Intent
	Warnings    []string
}

// cacheEntry represents a cached response with expiration time
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Retriever runs hybrid retrieval over a Store. It only reads shared state
// and is safe for concurrent use.
type Retriever struct {
	store    storage.Store
	embedder embedder.Embedder
	reranker *Reranker
	opts     Options

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// New creates a Retriever. gen may be nil, which disables reranking.
func New(store storage.Store, emb embedder.Embedder, gen llm.Generator, opts Options) *Retriever {
	opts = opts.withDefaults()

	cache, err := lru.New[[32]byte, *cacheEntry](opts.CacheSize)
	if err != nil {
		// Only reachable with a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	r := &Retriever{
		store:    store,
		embedder: emb,
		opts:     opts,
		cache:    cache,
	}
	if gen != nil {
		r.reranker = NewReranker(gen, llm.DefaultTimeout, 0, opts.Logger)
	}
	return r
}

// WithReranker replaces the reranker
func (r *Retriever) WithReranker(rr *Reranker) *Retriever {
	r.reranker = rr
	return r
}

// Retrieve returns the top results for req.Question.
//
// A failed query embedding returns types.ErrEmbeddingUnavailable; when both
// sub-searches fail it returns types.ErrSearchUnavailable. An empty result
// with a nil error means nothing matched.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if err := r.validateRequest(&req); err != nil {
		return nil, err
	}

	useCache := req.UseCache && r.opts.CacheResults
	if useCache {
		if cached := r.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	q := newQuery(req.Question, r.opts.Brands)
	resp := &Response{SearchMode: req.Mode, Intents: q.intents()}

	var queryVec []float32
	if req.Mode != SearchModeKeyword {
		vec, err := r.embedQuery(ctx, req.Question)
		if err != nil {
			return nil, err
		}
		queryVec = vec
	}

	lexical, vector, err := r.search(ctx, req, queryVec, resp)
	if err != nil {
		return nil, err
	}
	resp.LexicalHits, resp.VectorHits = len(lexical), len(vector)

	cands := fuse(lexical, vector, r.opts.Weights)
	for _, c := range cands {
		c.score += q.bonus(c.chunk.Content)
	}
	sortCandidates(cands)

	pool := max(r.opts.RerankK, req.TopK)
	if len(cands) > pool {
		cands = cands[:pool]
	}

	model := req.RerankModel
	if model == "" {
		model = r.opts.RerankModel
	}
	complete := len(resp.Warnings) == 0
	if model != "" && r.reranker != nil && len(cands) > 0 {
		resp.Reranked = r.reranker.rerank(ctx, model, req.Question, cands)
		complete = complete && resp.Reranked == len(cands)
		sortCandidates(cands)
	}

	if len(cands) > req.TopK {
		cands = cands[:req.TopK]
	}

	resp.Results = make([]types.RetrievalResult, len(cands))
	for i, c := range cands {
		resp.Results[i] = c.result()
	}
	resp.Duration = time.Since(start)

	// Degraded answers are never cached
	if useCache && complete && len(resp.Results) > 0 {
		r.storeInCache(req, resp)
	}
	return resp, nil
}

// embedQuery embeds the question with a single attempt
func (r *Retriever) embedQuery(ctx context.Context, question string) ([]float32, error) {
	if r.embedder == nil {
		return nil, fmt.Errorf("%w: embedder not initialized", types.ErrEmbeddingUnavailable)
	}

	ctx, cancel := context.WithTimeout(embedder.WithoutRetry(ctx), r.opts.SearchTimeout)
	defer cancel()

	emb, err := r.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: question, Model: r.opts.EmbeddingModel})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEmbeddingUnavailable, err)
	}
	vec, err := embedder.Conform(emb.Vector, r.opts.Dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// subSearch holds the outcome of one candidate search
type subSearch struct {
	lexical []storage.LexicalHit
	vector  []storage.VectorHit
	err     error
}

// search runs the sub-searches the mode needs concurrently. One failing side
// degrades to the other; both failing is an error.
func (r *Retriever) search(ctx context.Context, req Request, vec []float32, resp *Response) ([]storage.LexicalHit, []storage.VectorHit, error) {
	lexChan := make(chan subSearch, 1)
	vecChan := make(chan subSearch, 1)

	runLexical := req.Mode != SearchModeVector
	runVector := req.Mode != SearchModeKeyword

	if runLexical {
		go func() {
			sctx, cancel := context.WithTimeout(ctx, r.opts.SearchTimeout)
			defer cancel()
			hits, err := r.store.SearchLexical(sctx, req.Question, r.opts.BM25K)
			lexChan <- subSearch{lexical: hits, err: err}
		}()
	}
	if runVector {
		go func() {
			sctx, cancel := context.WithTimeout(ctx, r.opts.SearchTimeout)
			defer cancel()
			hits, err := r.store.SearchVector(sctx, vec, r.opts.VectorK)
			vecChan <- subSearch{vector: hits, err: err}
		}()
	}

	var lexRes, vecRes subSearch
	for pending := btoi(runLexical) + btoi(runVector); pending > 0; pending-- {
		select {
		case lexRes = <-lexChan:
		case vecRes = <-vecChan:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	// A question with no searchable terms simply has no lexical candidates
	if errors.Is(lexRes.err, storage.ErrEmptyQuery) {
		lexRes.err = nil
	}

	switch {
	case runLexical && runVector && lexRes.err != nil && vecRes.err != nil:
		return nil, nil, fmt.Errorf("%w: lexical: %v; vector: %v", types.ErrSearchUnavailable, lexRes.err, vecRes.err)
	case runLexical && !runVector && lexRes.err != nil:
		return nil, nil, fmt.Errorf("%w: %w", types.ErrSearchUnavailable, lexRes.err)
	case runVector && !runLexical && vecRes.err != nil:
		return nil, nil, fmt.Errorf("%w: %w", types.ErrSearchUnavailable, vecRes.err)
	}

	if lexRes.err != nil {
		r.opts.Logger.Warn("lexical search failed, using vector candidates only", "error", lexRes.err)
		resp.Warnings = append(resp.Warnings, "lexical search unavailable")
	}
	if vecRes.err != nil {
		r.opts.Logger.Warn("vector search failed, using lexical candidates only", "error", vecRes.err)
		resp.Warnings = append(resp.Warnings, "vector search unavailable")
	}
	return lexRes.lexical, vecRes.vector, nil
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// validateRequest ensures the request is valid and fills defaults
func (r *Retriever) validateRequest(req *Request) error {
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return types.ErrEmptyQuestion
	}

	if req.TopK <= 0 {
		req.TopK = r.opts.TopK
	}
	if req.TopK > maxTopK {
		req.TopK = maxTopK
	}

	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return err
	}
	req.Mode = mode
	return nil
}

// checkCache returns a copy of an unexpired cached response
func (r *Retriever) checkCache(req Request) *Response {
	hash := computeQueryHash(req)
	now := time.Now()

	r.cacheMu.RLock()
	entry, found := r.cache.Get(hash)
	if !found {
		r.cacheMu.RUnlock()
		return nil
	}

	if now.After(entry.expiresAt) {
		r.cacheMu.RUnlock()

		r.cacheMu.Lock()
		r.cache.Remove(hash)
		r.cacheMu.Unlock()
		return nil
	}

	response := copyResponse(entry.response)
	r.cacheMu.RUnlock()
	return response
}

func (r *Retriever) storeInCache(req Request, response *Response) {
	entry := &cacheEntry{
		response:  copyResponse(response),
		expiresAt: time.Now().Add(r.opts.CacheTTL),
	}

	r.cacheMu.Lock()
	r.cache.Add(computeQueryHash(req), entry)
	r.cacheMu.Unlock()
}

// InvalidateCache drops every cached response. Called after any source is
// replaced or deleted.
func (r *Retriever) InvalidateCache() {
	r.cacheMu.Lock()
	r.cache.Purge()
	r.cacheMu.Unlock()
}

// CacheLen reports the number of cached responses
func (r *Retriever) CacheLen() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return r.cache.Len()
}

// copyResponse deep-copies results so cached entries cannot be mutated
func copyResponse(src *Response) *Response {
	dst := *src
	dst.Results = make([]types.RetrievalResult, len(src.Results))
	for i, res := range src.Results {
		dst.Results[i] = res
		if res.Page != nil {
			page := *res.Page
			dst.Results[i].Page = &page
		}
		if res.Metadata != nil {
			md := make(map[string]any, len(res.Metadata))
			for k, v := range res.Metadata {
				md[k] = v
			}
			dst.Results[i].Metadata = md
		}
	}
	dst.Intents = append([]Intent(nil), src.Intents...)
	dst.Warnings = append([]string(nil), src.Warnings...)
	return &dst
}

// computeQueryHash keys the cache on everything that changes the answer
func computeQueryHash(req Request) [32]byte {
	var data strings.Builder
	data.WriteString(req.Question)
	data.WriteString("|")
	data.WriteString(string(req.Mode))
	data.WriteString("|")
	data.WriteString(fmt.Sprintf("%d", req.TopK))
	data.WriteString("|")
	data.WriteString(req.RerankModel)
	return sha256.Sum256([]byte(data.String()))
}
