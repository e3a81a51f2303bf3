package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/dshills/equiprag/pkg/types"
)

const (
	// DefaultMaxChars is the soft upper bound on chunk length in runes
	DefaultMaxChars = 1200

	// DefaultOverlap is the number of trailing runes repeated at the start of
	// the next packed chunk
	DefaultOverlap = 200

	// pageBreak separates pages in text produced by PDF extractors
	pageBreak = "\f"
)

// Mode selects the chunking strategy
type Mode string

const (
	ModeCatalog Mode = "catalog" // Spec-table and heading aware
	ModeGeneric Mode = "generic" // Clean and pack only
)

// ParseMode maps a user-supplied mode string to a Mode. Empty means catalog.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCatalog:
		return ModeCatalog, true
	case ModeGeneric:
		return ModeGeneric, true
	default:
		return "", false
	}
}

// Options configures chunk sizing
type Options struct {
	MaxChars int
	Overlap  int
}

// Segment is one chunk of text before it is assigned to a source
type Segment struct {
	Kind    types.SegmentKind
	Content string
	Page    *int // Set only when the input had page breaks
}

// Chunker splits catalog text into retrieval-sized segments. It holds no
// mutable state and is safe for concurrent use.
type Chunker struct {
	maxChars int
	overlap  int
}

// New creates a Chunker. Zero values fall back to the defaults; an overlap
// that is not smaller than MaxChars is reduced to a quarter of it.
func New(opts Options) *Chunker {
	maxChars := opts.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	overlap := opts.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars {
		overlap = maxChars / 4
	}
	return &Chunker{maxChars: maxChars, overlap: overlap}
}

// MaxChars returns the effective chunk size bound
func (c *Chunker) MaxChars() int { return c.maxChars }

// Overlap returns the effective overlap
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits a document with the given mode. Text containing form feeds is
// chunked page by page and every segment records its 1-based page number.
func (c *Chunker) Chunk(text string, mode Mode) []Segment {
	chunkPage := c.ChunkCatalog
	if mode == ModeGeneric {
		chunkPage = c.ChunkGeneric
	}

	if !strings.Contains(text, pageBreak) {
		return chunkPage(text)
	}

	var segments []Segment
	for i, page := range strings.Split(text, pageBreak) {
		for _, seg := range chunkPage(page) {
			seg.Page = types.IntPtr(i + 1)
			segments = append(segments, seg)
		}
	}
	return segments
}

// ChunkCatalog chunks product catalog text. Specification tables come out
// first as atomic segments, each prefixed by the model line that preceded
// it; the remaining text is split into heading sections and packed.
func (c *Chunker) ChunkCatalog(text string) []Segment {
	lines := cleanLines(text)
	if len(lines) == 0 {
		return nil
	}

	specs, rest := extractSpecBlocks(lines)

	segments := make([]Segment, 0, len(specs)+len(rest)/8+1)
	for _, block := range specs {
		segments = append(segments, Segment{Kind: types.SegmentSpec, Content: block})
	}

	for _, section := range splitSections(rest) {
		for _, packed := range c.pack(section) {
			segments = append(segments, Segment{Kind: types.SegmentSection, Content: packed})
		}
	}
	return segments
}

// ChunkGeneric cleans the text and packs it with overlap, with no structural
// detection.
func (c *Chunker) ChunkGeneric(text string) []Segment {
	lines := cleanLines(text)
	if len(lines) == 0 {
		return nil
	}
	packed := c.pack(lines)
	segments := make([]Segment, 0, len(packed))
	for _, p := range packed {
		segments = append(segments, Segment{Kind: types.SegmentGeneric, Content: p})
	}
	return segments
}

// extractSpecBlocks pulls specification tables out of the line stream.
// A table opens on a spec marker and runs until a model line, a non-row
// heading, another marker, or end of input. Lines outside tables are
// returned in order.
func extractSpecBlocks(lines []string) (blocks []string, rest []string) {
	var (
		block      []string
		inBlock    bool
		lastModel  string
		blockModel string
	)

	flush := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		if blockModel != "" {
			content = blockModel + "\n" + content
		}
		blocks = append(blocks, content)
		block = nil
	}

	for _, line := range lines {
		if isSpecMarker(line) {
			flush()
			inBlock = true
			blockModel = lastModel
			block = []string{line}
			continue
		}

		if inBlock {
			if !endsSpecBlock(line) {
				block = append(block, line)
				continue
			}
			flush()
			inBlock = false
		}

		if IsModelLine(line) {
			lastModel = line
		}
		rest = append(rest, line)
	}
	flush()

	return blocks, rest
}

// splitSections groups lines into sections. A heading or model line starts a
// new section; a model line inherits the last heading so the section keeps
// its context.
func splitSections(lines []string) [][]string {
	var (
		sections    [][]string
		current     []string
		lastHeading string
	)

	for _, line := range lines {
		switch {
		case IsHeading(line):
			if len(current) > 0 {
				sections = append(sections, current)
			}
			current = []string{line}
			lastHeading = line
		case IsModelLine(line) && len(current) > 0:
			sections = append(sections, current)
			current = nil
			if lastHeading != "" && lastHeading != line {
				current = append(current, lastHeading)
			}
			current = append(current, line)
		default:
			current = append(current, line)
		}
	}
	if len(current) > 0 {
		sections = append(sections, current)
	}
	return sections
}

// pack joins lines with newlines into chunks of at most maxChars runes. When
// a chunk closes, the next one starts with the closing chunk's last overlap
// runes. Lines longer than maxChars are hard-split first.
func (c *Chunker) pack(lines []string) []string {
	var (
		chunks  []string
		current string
	)

	for _, line := range c.splitLong(lines) {
		if current == "" {
			current = line
			continue
		}
		candidate := current + "\n" + line
		if utf8.RuneCountInString(candidate) <= c.maxChars {
			current = candidate
			continue
		}

		chunks = append(chunks, current)
		if tail := lastRunes(current, c.overlap); tail != "" {
			current = tail + "\n" + line
		} else {
			current = line
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// splitLong hard-splits any line longer than maxChars runes
func (c *Chunker) splitLong(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if utf8.RuneCountInString(line) <= c.maxChars {
			out = append(out, line)
			continue
		}
		runes := []rune(line)
		for start := 0; start < len(runes); start += c.maxChars {
			end := min(start+c.maxChars, len(runes))
			out = append(out, string(runes[start:end]))
		}
	}
	return out
}

// lastRunes returns the final n runes of s
func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
