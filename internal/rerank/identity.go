package rerank

import (
	"context"
	"fmt"

	"github.com/54b3r/ragbench-go/internal/retrieval"
)

// Identity is a reranker that keeps the retriever's ordering. Its reranker
// score is the upstream retrieval score, so a "R+identity" strategy is a
// baseline for measuring what a real reranker adds.
type Identity struct{}

// NewIdentity returns an Identity reranker.
func NewIdentity() *Identity { return &Identity{} }

// Name implements Reranker.
func (*Identity) Name() string { return string(KindIdentity) }

// Rerank implements Reranker.
func (*Identity) Rerank(ctx context.Context, _ string, docs []retrieval.RankedDocument) ([]RerankedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	scores := make([]float64, len(docs))
	for i, d := range docs {
		scores[i] = d.Score
	}
	out, err := attach(docs, scores)
	if err != nil {
		return nil, &Failure{Reranker: string(KindIdentity), Err: err}
	}
	return out, nil
}
