// Package chunker divides equipment catalog text into chunks for embedding
// and search.
//
// # Basic Usage
//
//	c := chunker.New(chunker.Options{MaxChars: 1200, Overlap: 200})
//	for _, seg := range c.Chunk(text, chunker.ModeCatalog) {
//	    fmt.Printf("%s: %d runes\n", seg.Kind, utf8.RuneCountInString(seg.Content))
//	}
//
// # Normalization
//
// Every line is trimmed and unit glyphs are rewritten to a canonical form
// (㎏, ＫＧ and 公斤 become kg; 公分 becomes cm; 公厘 becomes mm; 公尺 becomes m;
// 磅 becomes lbs). Empty lines and boilerplate lines (URLs, phone, fax,
// e-mail, copyright and page markers) are dropped.
//
// # Catalog Strategy
//
// Catalog chunking runs in two passes:
//   - Specification tables: a line containing SPECIFICATIONS, 規格 or 技術參數
//     opens a table that runs until the next model line or non-row heading.
//     Each table becomes one chunk, prefixed with the most recent model line,
//     and is never split, whatever its length.
//   - Sections: the remaining lines are grouped at headings and model lines.
//     A model line starts a new section that repeats the last heading.
//     Sections are packed with overlap.
//
// Spec chunks are emitted before section chunks.
//
// # Packing
//
// Lines are joined with newlines up to MaxChars runes. When a chunk closes,
// the next one begins with its last Overlap runes, so adjacent packed chunks
// always share that boundary text. A single line longer than MaxChars is
// split into MaxChars pieces first.
//
// # Pages
//
// Text containing form feeds is chunked page by page; each segment carries
// its 1-based page number.
package chunker
