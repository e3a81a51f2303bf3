package embedder

import (
	"math"
	"testing"

	"github.com/dshills/equiprag/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConform(t *testing.T) {
	vec := []float32{1, 2, 3, 4}

	out, err := Conform(vec, 4)
	require.NoError(t, err)
	assert.Equal(t, vec, out)

	out, err = Conform(vec, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, out)

	// Truncation copies; the input stays intact
	out[0] = 9
	assert.Equal(t, float32(1), vec[0])

	_, err = Conform(vec, 8)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	out, err = Conform(vec, 0)
	require.NoError(t, err)
	assert.Len(t, out, 4)
}

func TestFormatLiteral(t *testing.T) {
	assert.Equal(t, "[]", FormatLiteral(nil))
	assert.Equal(t, "[0.500000,-1.000000,0.000000]", FormatLiteral([]float32{0.5, -1, 0}))
}

func TestParseLiteral(t *testing.T) {
	vec, err := ParseLiteral("[0.5, -1,2e-1]")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1, 0.2}, vec)

	vec, err = ParseLiteral("[]")
	require.NoError(t, err)
	assert.Empty(t, vec)

	_, err = ParseLiteral("0.5,1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseLiteral("[0.5,abc]")
	assert.ErrorIs(t, err, ErrInvalidInput)

	in := []float32{0.123456, -0.5, 1}
	round, err := ParseLiteral(FormatLiteral(in))
	require.NoError(t, err)
	assert.InDeltaSlice(t, in, round, 1e-6)
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := CosineDistance(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, d, 1e-6)
			assert.False(t, math.IsNaN(d))
		})
	}

	_, err := CosineDistance([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestNormalizeVector(t *testing.T) {
	out := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, out[0], 1e-6)
	assert.InDelta(t, 0.8, out[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}
