package retriever

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/equiprag/internal/llm"
)

// mockGenerator implements llm.Generator for testing
type mockGenerator struct {
	mu        sync.Mutex
	calls     int
	models    []string
	generateF func(req llm.GenerateRequest) (string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	m.mu.Lock()
	m.calls++
	m.models = append(m.models, req.Model)
	m.mu.Unlock()
	return m.generateF(req)
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		resp string
		want float64
		ok   bool
	}{
		{"4", 4, true},
		{" 3.5\n", 3.5, true},
		{"2 because it lists the load limit", 2, true},
		{"7", 5, true},
		{"-1", 0, true},
		{"", 0, false},
		{"The excerpt is relevant", 0, false},
		{"NaN", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.resp, func(t *testing.T) {
			got, ok := ParseScore(tt.resp)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReranker_FallbackPerCandidate(t *testing.T) {
	gen := &mockGenerator{generateF: func(req llm.GenerateRequest) (string, error) {
		switch {
		case strings.Contains(req.Prompt, "first"):
			return "4", nil
		case strings.Contains(req.Prompt, "second"):
			return "no idea", nil
		default:
			return "", errors.New("timeout")
		}
	}}
	r := NewReranker(gen, time.Second, 2, nil)

	cands := []*candidate{
		{chunk: chunk(1, "first"), score: 0.9},
		{chunk: chunk(2, "second"), score: 0.8},
		{chunk: chunk(3, "third"), score: 0.7},
	}
	n := r.rerank(context.Background(), "llama3.2", "q", cands)

	assert.Equal(t, 1, n)
	assert.Equal(t, 4.0, cands[0].score)
	assert.Equal(t, 0.8, cands[1].score)
	assert.Equal(t, 0.7, cands[2].score)
	assert.Equal(t, 3, gen.callCount())
}

func TestReranker_PromptCarriesContentAndModel(t *testing.T) {
	var got llm.GenerateRequest
	var mu sync.Mutex
	gen := &mockGenerator{generateF: func(req llm.GenerateRequest) (string, error) {
		mu.Lock()
		got = req
		mu.Unlock()
		return "1", nil
	}}
	r := NewReranker(gen, time.Second, 1, nil)

	content := "Model 35-X\nSPECIFICATIONS\nLoad Limit 295 kg"
	r.rerank(context.Background(), "qwen2.5", "載重多少", []*candidate{{chunk: chunk(1, content)}})

	assert.Equal(t, "qwen2.5", got.Model)
	assert.Contains(t, got.Prompt, content)
	assert.Contains(t, got.Prompt, "載重多少")
	assert.Equal(t, rerankSystemPrompt, got.System)
	assert.Equal(t, 0.0, got.Temperature)
}
