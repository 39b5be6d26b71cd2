// Package rerank defines the second-stage reranker contract and its
// implementations. A reranker reorders the documents a retriever returned
// for one query; it never adds or removes documents.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/54b3r/ragbench-go/internal/retrieval"
)

var (
	// ErrRerankFailure matches every *Failure via errors.Is.
	ErrRerankFailure = errors.New("rerank: reranker failed")

	// ErrUnknownReranker is returned by New for a name with no registered factory.
	ErrUnknownReranker = errors.New("rerank: unknown reranker")

	// ErrScoreCountMismatch is wrapped in a Failure when a scorer does not
	// return exactly one score per document.
	ErrScoreCountMismatch = errors.New("rerank: score count does not match document count")

	// ErrPromptTooLarge is returned by LLMScorer.Score when the assembled
	// prompt exceeds LLMConfig.MaxPromptTokens.
	ErrPromptTooLarge = errors.New("rerank: scoring prompt exceeds token budget")
)

// RerankedDocument is a retrieved document carrying the reranker's score
// alongside the original retrieval score.
type RerankedDocument struct {
	retrieval.RankedDocument
	// RerankerScore is the relevance score assigned by the reranker.
	RerankerScore float64 `json:"reranker_score"`
}

// Reranker reorders retrieved documents for one query.
//
// The returned slice is a permutation of docs sorted by RerankerScore
// descending. Implementations report scoring errors as *Failure.
type Reranker interface {
	// Name returns the registry name of the reranker.
	Name() string
	// Rerank scores docs against query and returns them in descending
	// reranker-score order.
	Rerank(ctx context.Context, query string, docs []retrieval.RankedDocument) ([]RerankedDocument, error)
}

// Failure reports that a reranker could not score a query's documents.
type Failure struct {
	// Reranker is the name of the failing reranker.
	Reranker string
	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("rerank: %s: %v", f.Reranker, f.Err)
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error { return f.Err }

// Is makes errors.Is(err, ErrRerankFailure) true for any *Failure.
func (f *Failure) Is(target error) bool { return target == ErrRerankFailure }

// IDs returns the document IDs of docs in order.
func IDs(docs []RerankedDocument) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

// attach pairs docs with scores and sorts by score descending. Ties keep the
// input order. A length mismatch or a non-finite score is an error.
func attach(docs []retrieval.RankedDocument, scores []float64) ([]RerankedDocument, error) {
	if len(scores) != len(docs) {
		return nil, fmt.Errorf("%w: got %d scores for %d documents", ErrScoreCountMismatch, len(scores), len(docs))
	}
	out := make([]RerankedDocument, len(docs))
	for i, d := range docs {
		s := scores[i]
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("rerank: non-finite score %v for document %q", s, d.ID)
		}
		out[i] = RerankedDocument{RankedDocument: d, RerankerScore: s}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankerScore > out[j].RerankerScore
	})
	return out, nil
}
