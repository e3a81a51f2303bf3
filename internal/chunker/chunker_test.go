package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dshills/equiprag/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New(Options{})
	assert.Equal(t, DefaultMaxChars, c.MaxChars())
	assert.Equal(t, 0, c.Overlap())

	c = New(Options{MaxChars: 400, Overlap: -5})
	assert.Equal(t, 0, c.Overlap())

	c = New(Options{MaxChars: 400, Overlap: 400})
	assert.Equal(t, 100, c.Overlap())
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("")
	assert.True(t, ok)
	assert.Equal(t, ModeCatalog, m)

	m, ok = ParseMode(" Generic ")
	assert.True(t, ok)
	assert.Equal(t, ModeGeneric, m)

	_, ok = ParseMode("semantic")
	assert.False(t, ok)
}

func TestChunk_EmptyInput(t *testing.T) {
	c := New(Options{MaxChars: 1200, Overlap: 200})
	assert.Empty(t, c.Chunk("", ModeCatalog))
	assert.Empty(t, c.Chunk("   \n\n  ", ModeGeneric))
	assert.Empty(t, c.Chunk("www.example.com\nTel: 02-2345-6789", ModeCatalog))
}

func TestNormalizeUnits(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"承重 150公斤", "承重 150kg"},
		{"50㎏", "50kg"},
		{"120ＫＧ", "120kg"},
		{"長 190公分", "長 190cm"},
		{"厚 3公厘", "厚 3mm"},
		{"2公尺", "2m"},
		{"350磅", "350lbs"},
		{"plain text", "plain text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeUnits(tt.in), tt.in)
	}
}

func TestIsNoise(t *testing.T) {
	noisy := []string{
		"www.ferno.com",
		"https://example.com/catalog",
		"電話：02-2345-6789",
		"地址：台北市",
		"Tel 02 2345 6789",
		"FAX: 02 2345 6780",
		"E-mail sales",
		"Copyright 2023 Acme",
		"Page 4 of 12",
		"版權所有",
	}
	for _, line := range noisy {
		assert.True(t, IsNoise(line), line)
	}

	clean := []string{
		"Hotel transport stretcher",
		"Homepage layout",
		"Load Limit 295 kg",
		"折疊式擔架",
	}
	for _, line := range clean {
		assert.False(t, IsNoise(line), line)
	}
}

func TestIsHeading(t *testing.T) {
	assert.True(t, IsHeading("產品特點"))
	assert.True(t, IsHeading("FEATURES"))
	assert.True(t, IsHeading("Load Limit"))
	assert.True(t, IsHeading("● Adjustable backrest"))
	assert.False(t, IsHeading("●"))
	assert.False(t, IsHeading("Lightweight aluminium frame"))
	assert.False(t, IsHeading(""))
	assert.False(t, IsHeading("OK"))
}

func TestIsModelLine(t *testing.T) {
	assert.True(t, IsModelLine("Model 35-X"))
	assert.True(t, IsModelLine("型號：ES-2000"))
	assert.True(t, IsModelLine("Model No. 28"))
	assert.True(t, IsModelLine("Rx-200s"))
	assert.False(t, IsModelLine("This model supports heavy loads"))
	assert.False(t, IsModelLine("2023-10-01"))
	assert.False(t, IsModelLine("10-20cm"))
	assert.False(t, IsModelLine("Foldable frame"))
	assert.False(t, IsModelLine("35-20"))
	assert.False(t, IsModelLine("Model"))
}

func TestChunkCatalog_SpecBlockIsAtomic(t *testing.T) {
	var b strings.Builder
	b.WriteString("Model 35-X\n")
	b.WriteString("SPECIFICATIONS\n")
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "Row %d length 100 cm\n", i)
	}
	text := b.String()

	c := New(Options{MaxChars: 1200, Overlap: 200})
	segments := c.ChunkCatalog(text)
	require.Len(t, segments, 2)

	spec := segments[0]
	assert.Equal(t, types.SegmentSpec, spec.Kind)
	assert.Greater(t, utf8.RuneCountInString(spec.Content), 3000)
	assert.True(t, strings.HasPrefix(spec.Content, "Model 35-X\nSPECIFICATIONS\n"))
	assert.Contains(t, spec.Content, "Row 0 length 100 cm")
	assert.True(t, strings.HasSuffix(spec.Content, "Row 199 length 100 cm"))

	assert.Equal(t, types.SegmentSection, segments[1].Kind)
	assert.Equal(t, "Model 35-X", segments[1].Content)
}

func TestChunkCatalog_SpecBlockEndsAtHeading(t *testing.T) {
	text := strings.Join([]string{
		"SPECIFICATIONS",
		"Length 200 cm",
		"IMPERIAL METRIC",
		"LOAD LIMIT 650 lbs 295 kg",
		"FEATURES",
		"Folds flat for storage",
	}, "\n")

	segments := New(Options{}).ChunkCatalog(text)
	require.Len(t, segments, 2)

	assert.Equal(t, types.SegmentSpec, segments[0].Kind)
	assert.Equal(t, "SPECIFICATIONS\nLength 200 cm\nIMPERIAL METRIC\nLOAD LIMIT 650 lbs 295 kg", segments[0].Content)

	assert.Equal(t, types.SegmentSection, segments[1].Kind)
	assert.Equal(t, "FEATURES\nFolds flat for storage", segments[1].Content)
}

func TestChunkCatalog_ModelLineEndsSpecBlock(t *testing.T) {
	text := strings.Join([]string{
		"型號：ES-100",
		"規格",
		"長度 190公分",
		"承重 159公斤",
		"型號：ES-200",
		"規格",
		"長度 200公分",
	}, "\n")

	segments := New(Options{}).ChunkCatalog(text)
	require.Len(t, segments, 4)

	assert.Equal(t, "型號：ES-100\n規格\n長度 190cm\n承重 159kg", segments[0].Content)
	assert.Equal(t, "型號：ES-200\n規格\n長度 200cm", segments[1].Content)

	// Model lines outside the tables remain as their own sections
	assert.Equal(t, types.SegmentSection, segments[2].Kind)
	assert.Equal(t, "型號：ES-100", segments[2].Content)
	assert.Equal(t, "型號：ES-200", segments[3].Content)
}

func TestChunkCatalog_ModelLineCarriesHeading(t *testing.T) {
	text := strings.Join([]string{
		"產品特點",
		"Lightweight frame",
		"Rx-200s",
		"Folds flat",
	}, "\n")

	segments := New(Options{}).ChunkCatalog(text)
	require.Len(t, segments, 2)
	assert.Equal(t, "產品特點\nLightweight frame", segments[0].Content)
	assert.Equal(t, "產品特點\nRx-200s\nFolds flat", segments[1].Content)
}

func TestChunkGeneric_OverlapInvariant(t *testing.T) {
	var lines []string
	for i := 0; i < 120; i++ {
		lines = append(lines, fmt.Sprintf("line %03d of the transport stretcher brochure text", i))
	}
	text := strings.Join(lines, "\n")

	const maxChars, overlap = 300, 60
	c := New(Options{MaxChars: maxChars, Overlap: overlap})
	segments := c.ChunkGeneric(text)
	require.Greater(t, len(segments), 2)

	for i, seg := range segments {
		assert.Equal(t, types.SegmentGeneric, seg.Kind)
		assert.LessOrEqual(t, utf8.RuneCountInString(seg.Content), maxChars, "chunk %d", i)
	}

	for i := 0; i+1 < len(segments); i++ {
		prev := []rune(segments[i].Content)
		next := []rune(segments[i+1].Content)
		n := min(overlap, len(prev))
		assert.Equal(t, string(prev[len(prev)-n:]), string(next[:n]), "boundary %d", i)
	}
}

func TestChunkGeneric_CountsRunes(t *testing.T) {
	line := strings.Repeat("擔", 40)
	text := strings.Join([]string{line, line, line, line}, "\n")

	// 40 runes but 120 bytes per line
	c := New(Options{MaxChars: 100, Overlap: 0})
	segments := c.ChunkGeneric(text)
	require.Len(t, segments, 2)
	assert.Equal(t, line+"\n"+line, segments[0].Content)
	assert.Equal(t, line+"\n"+line, segments[1].Content)
}

func TestChunkGeneric_SplitsLongLine(t *testing.T) {
	text := strings.Repeat("a", 250)
	c := New(Options{MaxChars: 100, Overlap: 0})
	segments := c.ChunkGeneric(text)
	require.Len(t, segments, 3)
	assert.Equal(t, 100, utf8.RuneCountInString(segments[0].Content))
	assert.Equal(t, 50, utf8.RuneCountInString(segments[2].Content))
}

func TestChunk_Pages(t *testing.T) {
	text := "Stretcher frame\fWheel assembly\f\fBackrest 0-75°"
	segments := New(Options{}).Chunk(text, ModeGeneric)
	require.Len(t, segments, 3)

	require.NotNil(t, segments[0].Page)
	assert.Equal(t, 1, *segments[0].Page)
	assert.Equal(t, 2, *segments[1].Page)
	assert.Equal(t, 4, *segments[2].Page)
	assert.Equal(t, "Backrest 0-75°", segments[2].Content)
}

func TestChunk_NoPagesWithoutFormFeed(t *testing.T) {
	segments := New(Options{}).Chunk("Stretcher frame", ModeCatalog)
	require.Len(t, segments, 1)
	assert.Nil(t, segments[0].Page)
}
