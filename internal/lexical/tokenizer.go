// Package lexical turns catalog text into the terms stored in the full-text
// index and builds match expressions from questions. Index writers and query
// builders must share it so both sides agree on terms.
package lexical

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase terms. Latin words and digit runs are
// kept whole; runs of CJK characters become overlapping bigrams (a lone CJK
// character is kept as a unigram). Stopwords and single Latin letters are
// dropped.
func Tokenize(text string) []string {
	var (
		tokens []string
		word   []rune
		cjk    []rune
	)

	flushWord := func() {
		if len(word) == 0 {
			return
		}
		w := strings.ToLower(string(word))
		word = word[:0]
		if len(w) == 1 && !isDigitString(w) {
			return
		}
		if _, stop := stopwords[w]; stop {
			return
		}
		tokens = append(tokens, w)
	}
	flushCJK := func() {
		switch len(cjk) {
		case 0:
			return
		case 1:
			tokens = append(tokens, string(cjk))
		default:
			for i := 0; i+1 < len(cjk); i++ {
				tokens = append(tokens, string(cjk[i:i+2]))
			}
		}
		cjk = cjk[:0]
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flushWord()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			word = append(word, r)
		default:
			flushWord()
			flushCJK()
		}
	}
	flushWord()
	flushCJK()

	return tokens
}

// Terms returns the distinct tokens of text in first-seen order
func Terms(text string) []string {
	tokens := Tokenize(text)
	seen := make(map[string]struct{}, len(tokens))
	terms := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		terms = append(terms, t)
	}
	return terms
}

// Document renders text as the space separated term list written to the
// full-text index
func Document(text string) string {
	return strings.Join(Tokenize(text), " ")
}

// MatchExpression builds an FTS5 MATCH expression that ORs every distinct
// term of the question. Terms are double quoted so operators and punctuation
// in user input are matched literally. Returns "" when the question has no
// searchable terms.
func MatchExpression(question string) string {
	terms := Terms(question)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

func isDigitString(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

// stopwords are common English words that carry no catalog meaning
var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "or", "so", "can", "do", "does",
		"what", "which", "how", "there", "any", "me", "show",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
