package types

import "sort"

// RetrievalResult is a scored chunk returned by the retriever.
// Results are ephemeral and never persisted.
type RetrievalResult struct {
	ID         int64          `json:"id"`
	Source     string         `json:"source"`
	Page       *int           `json:"page,omitempty"`
	ChunkIndex int            `json:"chunk_index"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`

	// Score is unbounded once intent bonuses or rerank scores are applied.
	Score float64 `json:"score"`
}

// Validate checks if the retrieval result is valid
func (r *RetrievalResult) Validate() error {
	if r.ID <= 0 {
		return ErrInvalidChunkID
	}
	if r.Source == "" {
		return ErrMissingSource
	}
	if r.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

// SortResults orders results by score descending, breaking ties by ID ascending
// so that equal scores always come back in the same order.
func SortResults(results []RetrievalResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
