package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/equiprag/internal/llm"
)

const (
	// MaxRerankScore is the upper bound of a model relevance score
	MaxRerankScore = 5.0

	defaultRerankConcurrency = 4

	rerankSystemPrompt = "You rate how relevant a catalog excerpt is to a question. Reply with a single number from 0 to 5 and nothing else."
)

// Reranker asks a language model to score each candidate in [0, 5]
type Reranker struct {
	generator   llm.Generator
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

// NewReranker creates a reranker. timeout bounds each generate call.
func NewReranker(gen llm.Generator, timeout time.Duration, concurrency int, logger *slog.Logger) *Reranker {
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	if concurrency <= 0 {
		concurrency = defaultRerankConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{generator: gen, timeout: timeout, concurrency: concurrency, logger: logger}
}

func rerankPrompt(question, content string) string {
	return fmt.Sprintf("Question:\n%s\n\nExcerpt:\n%s\n\nRelevance (0-5):", question, content)
}

// ParseScore reads the first whitespace-delimited token of resp as a score
// clamped to [0, 5]
func ParseScore(resp string) (float64, bool) {
	fields := strings.Fields(resp)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return math.Max(0, math.Min(MaxRerankScore, v)), true
}

// rerank rescores cands in place with model. A candidate whose call fails
// or whose reply is not a number keeps its current score. It reports how
// many candidates were rescored.
func (r *Reranker) rerank(ctx context.Context, model, question string, cands []*candidate) int {
	scores := make([]float64, len(cands))
	ok := make([]bool, len(cands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, cand := range cands {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, r.timeout)
			defer cancel()

			resp, err := r.generator.Generate(callCtx, llm.GenerateRequest{
				Model:       model,
				Prompt:      rerankPrompt(question, cand.chunk.Content),
				System:      rerankSystemPrompt,
				Temperature: 0,
			})
			if err != nil {
				r.logger.Warn("rerank call failed", "chunk_id", cand.chunk.ID, "model", model, "error", err)
				return nil
			}
			score, parsed := ParseScore(resp)
			if !parsed {
				r.logger.Warn("rerank response is not a score", "chunk_id", cand.chunk.ID, "model", model, "response", truncate(resp, 80))
				return nil
			}
			scores[i], ok[i] = score, true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for i, cand := range cands {
		if ok[i] {
			cand.score = scores[i]
			n++
		}
	}
	return n
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
