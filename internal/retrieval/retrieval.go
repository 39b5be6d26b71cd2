// Package retrieval defines the corpus data model and the lexical retrievers
// that rank a corpus against a query. Retrievers are built once per run with
// Index and are read-only afterwards, so Retrieve is safe to call from
// multiple goroutines.
package retrieval

import (
	"context"
	"errors"
)

var (
	// ErrNotIndexed is returned by Retrieve when Index has not been called.
	ErrNotIndexed = errors.New("retrieval: index has not been built, call Index first")

	// ErrAlreadyIndexed is returned by Index on its second call.
	ErrAlreadyIndexed = errors.New("retrieval: index already built")

	// ErrInvalidK is returned when the top-K cutoff is below 1.
	ErrInvalidK = errors.New("retrieval: k must be >= 1")

	// ErrUnknownRetriever is returned by New for a name outside the registry.
	ErrUnknownRetriever = errors.New("retrieval: unknown retriever")
)

// Document is one corpus entry. Documents are immutable once loaded.
type Document struct {
	// ID uniquely identifies the document within the corpus.
	ID string `json:"id"`
	// Text is the raw document body.
	Text string `json:"text"`
}

// Query is one benchmark query.
type Query struct {
	// ID is the key used to look up ground truth and to label report rows.
	ID string `json:"query_id"`
	// Text is the natural-language query.
	Text string `json:"text"`
}

// GroundTruth maps a query ID to the IDs of the documents judged relevant.
// A nil GroundTruth, or a missing entry, disables Recall and NDCG for that query.
type GroundTruth map[string][]string

// Relevant returns the relevant document set for queryID, or nil when no
// judgment exists.
func (g GroundTruth) Relevant(queryID string) map[string]struct{} {
	ids, ok := g[queryID]
	if !ok {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// RankedDocument is a retriever output entry. Score is retriever-specific
// and not comparable across retrievers.
type RankedDocument struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// IDs returns the document IDs of docs in order.
func IDs(docs []RankedDocument) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

// Retriever ranks an indexed corpus against a query.
type Retriever interface {
	// Index builds the term statistics for corpus. It must be called exactly
	// once before Retrieve.
	Index(corpus []Document) error

	// Retrieve returns at most min(k, len(corpus)) documents ordered by
	// descending score, ties broken by corpus order.
	Retrieve(ctx context.Context, query string, k int) ([]RankedDocument, error)
}
