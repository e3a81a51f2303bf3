// Package retriever implements hybrid catalog retrieval combining BM25
// keyword ranking and vector similarity, adjusted for question intent.
//
// The retriever provides three search modes:
//   - Hybrid: embeds the question, then fuses lexical and vector candidates (default)
//   - Vector: vector candidates only
//   - Keyword: lexical candidates only, no embedding call
//
// # Basic Usage
//
//	r := retriever.New(store, emb, llmClient, retriever.Options{TopK: 5})
//
//	resp, err := r.Retrieve(ctx, retriever.Request{
//	    Question: "載重250kg以上的擔架床有哪些選擇",
//	})
//	switch {
//	case errors.Is(err, types.ErrEmbeddingUnavailable), errors.Is(err, types.ErrSearchUnavailable):
//	    // temporarily unable to search catalog
//	case len(resp.Results) == 0:
//	    // no matching equipment found
//	}
//
// # Scoring
//
// Lexical scores are divided by the pool maximum and cosine distances map to
// 1 - min(d, 2)/2. The two are blended with Options.Weights (0.5/0.5 by
// default) over the union of both pools, so a chunk found by only one search
// gets zero from the other.
//
// Intent bonuses are then added from a fixed table. A question about load
// limits with a threshold such as "300kg" rewards candidates whose largest
// "<n> kg" value meets it and penalizes those below it; questions about
// features, angles, model numbers and brands have their own rules. Several
// intents may fire for one question and their bonuses add up.
//
// # Reranking
//
// When a rerank model is configured the top max(RerankK, TopK) candidates are
// scored 0 to 5 by the language model. A failed call or a reply that is not a
// number leaves that candidate's score unchanged; candidates are never
// dropped by reranking.
//
// # Caching
//
// With Options.CacheResults set, responses can be cached per question, mode,
// top-k and rerank model. Degraded responses are never cached. The indexer
// purges the cache whenever a source changes.
package retriever
