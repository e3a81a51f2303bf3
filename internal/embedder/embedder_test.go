package embedder

import (
	"errors"
	"testing"
)

func TestComputeHash(t *testing.T) {
	a := ComputeHash("nomic-embed-text", "stretcher")
	b := ComputeHash("nomic-embed-text", "stretcher")
	if a != b {
		t.Errorf("ComputeHash() not consistent: %v != %v", a, b)
	}

	if ComputeHash("mxbai-embed-large", "stretcher") == a {
		t.Error("ComputeHash() must differ across models for the same text")
	}

	// The separator keeps model/text boundaries unambiguous
	if ComputeHash("ab", "c") == ComputeHash("a", "bc") {
		t.Error("ComputeHash() collides across model/text boundary")
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     EmbeddingRequest
		wantErr error
	}{
		{name: "valid request", req: EmbeddingRequest{Text: "test text"}},
		{name: "empty text", req: EmbeddingRequest{Text: ""}, wantErr: ErrEmptyText},
		{name: "with model", req: EmbeddingRequest{Text: "test", Model: "custom-model"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRequest() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBatchRequest(t *testing.T) {
	if err := ValidateBatchRequest(BatchEmbeddingRequest{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty batch: error = %v, want ErrInvalidInput", err)
	}
	if err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty text: error = %v, want ErrInvalidInput", err)
	}
	if err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}); err != nil {
		t.Errorf("valid batch: unexpected error %v", err)
	}
}

func TestCache(t *testing.T) {
	cache := NewCache(2)

	emb := &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3, Model: "m"}
	cache.Set("a", emb)

	// Mutating the original must not reach the cached copy
	emb.Vector[0] = 99

	got, ok := cache.Get("a")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Vector[0] != 1 {
		t.Errorf("cached vector was mutated: %v", got.Vector)
	}

	// Mutating a returned copy must not reach the cache either
	got.Vector[1] = 42
	again, _ := cache.Get("a")
	if again.Vector[1] != 2 {
		t.Errorf("Get() returned a shared vector: %v", again.Vector)
	}

	cache.Set("b", emb)
	cache.Set("c", emb)
	if cache.Size() != 2 {
		t.Errorf("Size() = %d, want 2", cache.Size())
	}
	if _, ok := cache.Get("a"); ok {
		t.Error("expected least recently used entry to be evicted")
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Size() after Clear() = %d, want 0", cache.Size())
	}
}
