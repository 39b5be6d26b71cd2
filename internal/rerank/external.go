package rerank

import (
	"context"

	"github.com/54b3r/ragbench-go/internal/retrieval"
)

// Scorer assigns one relevance score per text for a query. Scores are
// returned in the order of texts.
type Scorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, query string, texts []string) ([]float64, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	return f(ctx, query, texts)
}

// ExternalScoring is a reranker backed by a Scorer such as a cross-encoder
// service, the Cohere rerank API or an LLM judge. Any scorer error,
// including a wrong number of scores, is reported as *Failure.
type ExternalScoring struct {
	name   string
	scorer Scorer
}

// NewExternalScoring returns a reranker named name that delegates scoring to s.
func NewExternalScoring(name string, s Scorer) *ExternalScoring {
	return &ExternalScoring{name: name, scorer: s}
}

// Name implements Reranker.
func (r *ExternalScoring) Name() string { return r.name }

// Rerank implements Reranker. An empty document list returns an empty result
// without contacting the scorer.
func (r *ExternalScoring) Rerank(ctx context.Context, query string, docs []retrieval.RankedDocument) ([]RerankedDocument, error) {
	if len(docs) == 0 {
		return []RerankedDocument{}, nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	scores, err := r.scorer.Score(ctx, query, texts)
	if err != nil {
		return nil, &Failure{Reranker: r.name, Err: err}
	}
	out, err := attach(docs, scores)
	if err != nil {
		return nil, &Failure{Reranker: r.name, Err: err}
	}
	return out, nil
}
