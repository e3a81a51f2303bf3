package embedder

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dshills/equiprag/pkg/types"
)

// literalPrecision is the number of decimals written per component
const literalPrecision = 6

// Conform fits vec to dim components. Longer vectors are truncated; shorter
// ones are rejected with types.ErrDimensionMismatch. dim <= 0 disables the
// check.
func Conform(vec []float32, dim int) ([]float32, error) {
	if dim <= 0 || len(vec) == dim {
		return vec, nil
	}
	if len(vec) < dim {
		return nil, fmt.Errorf("%w: got %d components, want %d", types.ErrDimensionMismatch, len(vec), dim)
	}
	out := make([]float32, dim)
	copy(out, vec[:dim])
	return out, nil
}

// FormatLiteral renders vec as "[v1,v2,...,vn]" with fixed precision. This is
// the storage and query form understood by vec_distance_cosine and pgvector.
func FormatLiteral(vec []float32) string {
	buf := make([]byte, 0, 2+len(vec)*(literalPrecision+4))
	buf = append(buf, '[')
	for i, v := range vec {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(v), 'f', literalPrecision, 32)
	}
	buf = append(buf, ']')
	return string(buf)
}

// ParseLiteral parses a vector literal written by FormatLiteral
func ParseLiteral(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%w: vector literal must be bracketed", ErrInvalidInput)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []float32{}, nil
	}

	parts := strings.Split(body, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("%w: component %d: %v", ErrInvalidInput, i, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

// ErrLengthMismatch is returned when comparing vectors of different lengths
var ErrLengthMismatch = errors.New("vector lengths differ")

// CosineDistance returns 1 - cosine similarity, bounded to [0, 2]. A zero
// vector is at distance 1 from everything.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 1, nil
	}

	d := 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
	return math.Min(math.Max(d, 0), 2), nil
}

// NormalizeVector normalizes a vector to unit length
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := math.Sqrt(sum)
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = float32(float64(val) / norm)
	}

	return result
}
