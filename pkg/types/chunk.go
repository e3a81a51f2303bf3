package types

import (
	"crypto/sha256"
	"errors"
	"unicode/utf8"
)

// SegmentKind identifies how a chunk was produced by the chunker
type SegmentKind string

const (
	SegmentSpec    SegmentKind = "spec"    // Atomic specification table
	SegmentSection SegmentKind = "section" // Packed heading/model section
	SegmentGeneric SegmentKind = "generic" // Plain overlapping window
)

// Chunk is a contiguous, bounded span of normalized catalog text.
// (Source, ChunkIndex) is unique within a store.
type Chunk struct {
	// Identification
	ID         int64
	Source     string
	Page       *int // Nullable - whole-document ingestion has no page
	ChunkIndex int

	// Content
	Content     string
	ContentHash [32]byte
	Kind        SegmentKind
	Metadata    map[string]any

	// Embedding is attached once during indexing
	Embedding []float32
}

// ValidateContent checks if the chunk content is valid
func (c *Chunk) ValidateContent() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}
	if !utf8.ValidString(c.Content) {
		return errors.New("chunk content must be valid UTF-8")
	}
	return nil
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if err := c.ValidateContent(); err != nil {
		return err
	}

	if c.Source == "" {
		return errors.New("source is required")
	}

	if c.ChunkIndex < 0 {
		return errors.New("chunk index must be non-negative")
	}

	if c.Page != nil && *c.Page <= 0 {
		return errors.New("page numbers start at 1")
	}

	return nil
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// BuildMetadata fills the standard metadata keys, preserving any extra keys
// already present.
func (c *Chunk) BuildMetadata() map[string]any {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any, 4)
	}
	c.Metadata["source"] = c.Source
	c.Metadata["chunk_index"] = c.ChunkIndex
	if c.Page != nil {
		c.Metadata["page"] = *c.Page
	} else {
		c.Metadata["page"] = nil
	}
	if c.Kind != "" {
		c.Metadata["kind"] = string(c.Kind)
	}
	return c.Metadata
}

// IntPtr returns a pointer to v. Used for optional page numbers.
func IntPtr(v int) *int {
	return &v
}
