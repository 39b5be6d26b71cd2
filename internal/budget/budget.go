// Package budget provides token estimation and truncation for text sent to
// LLM-backed relevance scorers. Scorer backends use different tokenizers, so
// the package applies a conservative character heuristic: 1 token ≈ 4
// characters of English prose.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxDocTokens is the per-document budget applied when a scorer
	// does not configure one. Override via SCORER_MAX_DOC_TOKENS.
	DefaultMaxDocTokens = 256

	// ellipsis marks text that was cut to fit a budget.
	ellipsis = "..."
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// per-message framing overhead
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Truncate shortens text so that its estimated size fits within maxTokens.
// Text already inside the budget is returned unchanged. Cut text ends with
// "..." and never splits a UTF-8 sequence. A non-positive maxTokens disables
// truncation.
func Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 || Estimate(text) <= maxTokens {
		return text
	}
	limit := maxTokens*charsPerToken - len(ellipsis)
	if limit <= 0 {
		return ellipsis
	}
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit] + ellipsis
}

// TruncateAll applies Truncate to every entry of texts and returns a new slice.
func TruncateAll(texts []string, maxTokens int) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = Truncate(t, maxTokens)
	}
	return out
}
