package retriever

import (
	"sort"

	"github.com/dshills/equiprag/internal/storage"
	"github.com/dshills/equiprag/pkg/types"
)

// Weights combine normalized lexical and vector scores
type Weights struct {
	Lexical float64
	Vector  float64
}

// DefaultWeights is an even blend
var DefaultWeights = Weights{Lexical: 0.5, Vector: 0.5}

// candidate is a chunk in the fused pool
type candidate struct {
	chunk   types.Chunk
	lexical float64 // normalized to [0, 1]
	vector  float64 // similarity in [0, 1]
	score   float64
}

// maxDistance bounds cosine distance
const maxDistance = 2.0

// fuse unions lexical and vector hits by chunk ID. Lexical scores are divided
// by the pool maximum; distances become 1 - min(d, 2)/2. A chunk missing from
// one pool gets zero from that side.
func fuse(lexical []storage.LexicalHit, vector []storage.VectorHit, w Weights) []*candidate {
	byID := make(map[int64]*candidate, len(lexical)+len(vector))
	get := func(c types.Chunk) *candidate {
		if cand, ok := byID[c.ID]; ok {
			return cand
		}
		cand := &candidate{chunk: c}
		byID[c.ID] = cand
		return cand
	}

	var maxLex float64
	for _, h := range lexical {
		if h.Score > maxLex {
			maxLex = h.Score
		}
	}
	for _, h := range lexical {
		cand := get(h.Chunk)
		if maxLex > 0 {
			cand.lexical = h.Score / maxLex
		}
	}

	for _, h := range vector {
		d := h.Distance
		if d < 0 {
			d = 0
		}
		if d > maxDistance {
			d = maxDistance
		}
		get(h.Chunk).vector = 1 - d/maxDistance
	}

	out := make([]*candidate, 0, len(byID))
	for _, cand := range byID {
		cand.score = w.Lexical*cand.lexical + w.Vector*cand.vector
		out = append(out, cand)
	}
	sortCandidates(out)
	return out
}

// sortCandidates orders by score descending, then chunk ID ascending
func sortCandidates(cands []*candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].chunk.ID < cands[j].chunk.ID
	})
}

func (c *candidate) result() types.RetrievalResult {
	return types.RetrievalResult{
		ID:         c.chunk.ID,
		Source:     c.chunk.Source,
		Page:       c.chunk.Page,
		ChunkIndex: c.chunk.ChunkIndex,
		Content:    c.chunk.Content,
		Metadata:   c.chunk.Metadata,
		Score:      c.score,
	}
}
