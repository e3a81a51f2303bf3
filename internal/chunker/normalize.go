package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// unitReplacer maps full-width and CJK unit glyphs to their canonical forms.
// Longer glyphs must come before their prefixes.
var unitReplacer = strings.NewReplacer(
	"㎏", "kg",
	"ＫＧ", "kg",
	"ｋｇ", "kg",
	"Ｋｇ", "kg",
	"公斤", "kg",
	"公分", "cm",
	"公厘", "mm",
	"㎝", "cm",
	"㎜", "mm",
	"公尺", "m",
	"磅", "lbs",
)

// noiseSubstrings drop a line whenever they appear anywhere in it
var noiseSubstrings = []string{
	"www.",
	"http://",
	"https://",
	"電話",
	"傳真",
	"地址",
	"版權",
	"頁次",
	"@",
}

// noiseWords drop a line when present as a standalone word, any case
var noiseWords = regexp.MustCompile(`(?i)(^|[^a-z])(tel|fax|e-?mail|copyright|page)([^a-z]|$)`)

// NormalizeUnits rewrites unit variants to kg, cm, mm, m and lbs
func NormalizeUnits(line string) string {
	return unitReplacer.Replace(line)
}

// IsNoise reports whether a line is boilerplate (contact details, URLs,
// copyright and page markers) that should never be indexed
func IsNoise(line string) bool {
	for _, key := range noiseSubstrings {
		if strings.Contains(line, key) {
			return true
		}
	}
	return noiseWords.MatchString(line)
}

// cleanLines trims, normalizes units and drops empty and noise lines
func cleanLines(text string) []string {
	raw := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(raw))
	for _, line := range raw {
		line = NormalizeUnits(strings.TrimSpace(strings.TrimRight(line, "\r")))
		if line == "" || IsNoise(line) {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return cleaned
}

// maxHeadingRunes bounds how long a keyword heading may be
const maxHeadingRunes = 60

// headingKeywords mark section headings in catalog text (case-sensitive)
var headingKeywords = []string{
	"型號",
	"Model",
	"規格",
	"SPECIFICATIONS",
	"特色",
	"功能",
	"尺寸",
	"重量",
	"材質",
	"配件",
	"承重",
	"載重",
	"Load Limit",
	"產品特點",
	"技術參數",
}

// specMarkers open a specification table
var specMarkers = []string{
	"SPECIFICATIONS",
	"Specifications",
	"規格",
	"技術參數",
}

// bulletGlyphs start a bulleted heading line
const bulletGlyphs = "▪●■◆►•※◎"

var (
	modelLinePattern = regexp.MustCompile(`(?i)(\bmodel\b|型號)\s*(no\.?|number)?\s*[:：#]?\s*[a-z\-]*[0-9][a-z0-9\-]*`)
	unitSuffix       = regexp.MustCompile(`(?i)\d\s*(kg|lbs?|mm|cm|m|in|°)$`)
	unitSystemWords  = map[string]bool{"imperial": true, "metric": true, "us": true, "si": true, "standard": true}
)

// IsHeading reports whether a line starts a new section. A heading is a short
// line with a heading keyword, a short upper-case line, or a bulleted line.
func IsHeading(line string) bool {
	if line == "" {
		return false
	}
	n := utf8.RuneCountInString(line)

	if n < maxHeadingRunes {
		for _, kw := range headingKeywords {
			if strings.Contains(line, kw) {
				return true
			}
		}
		if n > 2 && isUpperLine(line) {
			return true
		}
	}

	first, size := utf8.DecodeRuneInString(line)
	if strings.ContainsRune(bulletGlyphs, first) {
		rest := strings.TrimSpace(line[size:])
		return rest != ""
	}
	return false
}

// IsModelLine reports whether a line names a product model, either with an
// explicit "Model"/"型號" marker or as a short hyphenated code such as "35-X".
func IsModelLine(line string) bool {
	if modelLinePattern.MatchString(line) {
		return true
	}
	if utf8.RuneCountInString(line) > 20 || strings.ContainsAny(line, " \t") {
		return false
	}
	if !strings.Contains(line, "-") || unitSuffix.MatchString(line) {
		return false
	}
	hasDigit, hasLetter := false, false
	for _, r := range line {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		}
	}
	// Pure digit/hyphen runs are dates and phone numbers, not models
	return hasDigit && hasLetter
}

// isSpecMarker reports whether a line opens a specification table
func isSpecMarker(line string) bool {
	if utf8.RuneCountInString(line) >= maxHeadingRunes {
		return false
	}
	for _, m := range specMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// isSpecRow reports whether a heading-looking line is really a table row:
// rows carry numbers ("LOAD LIMIT 295 kg") or unit-system column headers.
func isSpecRow(line string) bool {
	for _, r := range line {
		if unicode.IsDigit(r) {
			return true
		}
	}
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}
	for _, f := range fields {
		if !unitSystemWords[strings.Trim(f, "/|:()")] {
			return false
		}
	}
	return true
}

// endsSpecBlock reports whether a line closes the open specification table
func endsSpecBlock(line string) bool {
	if modelLinePattern.MatchString(line) {
		return true
	}
	return IsHeading(line) && !isSpecRow(line) && !isSpecMarker(line)
}

// isUpperLine mirrors an "all cased characters are upper case" check: at least
// one cased rune and no lower-case runes
func isUpperLine(line string) bool {
	cased := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
