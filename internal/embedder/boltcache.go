package embedder

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"go.etcd.io/bbolt"
)

var bucketEmbeddings = []byte("embeddings")

// PersistentCache decorates an Embedder with an on-disk bbolt cache so
// re-ingesting unchanged catalog text does not hit the model server again.
// Entries are keyed by ComputeHash(model, text).
type PersistentCache struct {
	inner Embedder
	db    *bbolt.DB
}

// NewPersistentCache opens (or creates) the cache file at path
func NewPersistentCache(path string, inner Embedder) (*PersistentCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket %s: %w", bucketEmbeddings, err)
	}

	return &PersistentCache{inner: inner, db: db}, nil
}

func (p *PersistentCache) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.inner.Model()
	}
	key := ComputeHash(model, req.Text)

	if vec, ok := p.lookup(key); ok {
		return &Embedding{
			Vector:    vec,
			Dimension: len(vec),
			Provider:  p.inner.Provider(),
			Model:     model,
			Hash:      key,
		}, nil
	}

	emb, err := p.inner.GenerateEmbedding(ctx, req)
	if err != nil {
		return nil, err
	}
	// A failed write only costs a future cache miss
	_ = p.store(key, emb.Vector)
	return emb, nil
}

func (p *PersistentCache) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.inner.Model()
	}

	embeddings := make([]*Embedding, len(req.Texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, text := range req.Texts {
		key := ComputeHash(model, text)
		if vec, ok := p.lookup(key); ok {
			embeddings[i] = &Embedding{
				Vector:    vec,
				Dimension: len(vec),
				Provider:  p.inner.Provider(),
				Model:     model,
				Hash:      key,
			}
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		resp, err := p.inner.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: missTexts, Model: req.Model})
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(missTexts) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(resp.Embeddings), len(missTexts))
		}
		for j, emb := range resp.Embeddings {
			embeddings[missIdx[j]] = emb
			_ = p.store(ComputeHash(model, missTexts[j]), emb.Vector)
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.inner.Provider(),
		Model:      model,
	}, nil
}

func (p *PersistentCache) lookup(key string) ([]float32, bool) {
	var vec []float32
	_ = p.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbeddings).Get([]byte(key))
		if data == nil || len(data)%4 != 0 {
			return nil
		}
		vec = decodeVector(data)
		return nil
	})
	return vec, vec != nil
}

func (p *PersistentCache) store(key string, vec []float32) error {
	return p.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put([]byte(key), encodeVector(vec))
	})
}

// Len returns the number of cached vectors
func (p *PersistentCache) Len() int {
	n := 0
	_ = p.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketEmbeddings).Stats().KeyN
		return nil
	})
	return n
}

func (p *PersistentCache) Dimension() int {
	return p.inner.Dimension()
}

func (p *PersistentCache) Provider() string {
	return p.inner.Provider()
}

func (p *PersistentCache) Model() string {
	return p.inner.Model()
}

// Close closes the cache file and the wrapped embedder
func (p *PersistentCache) Close() error {
	dbErr := p.db.Close()
	if err := p.inner.Close(); err != nil {
		return err
	}
	return dbErr
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}
