// Package tokenizer normalises free text into the terms used by the lexical
// retrievers. Tokenisation is deterministic and case-insensitive: every run
// of letters or digits becomes one lowercase term, everything else is a
// separator.
package tokenizer

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase alphanumeric terms, preserving the
// order in which they appear. Empty or whitespace-only text yields an empty
// (nil) slice.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return strings.FieldsFunc(strings.ToLower(text), isSeparator)
}

// TermFrequencies counts how many times each term occurs in terms.
func TermFrequencies(terms []string) map[string]int {
	tf := make(map[string]int, len(terms))
	for _, t := range terms {
		tf[t]++
	}
	return tf
}

// isSeparator reports whether r splits two terms.
func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}
