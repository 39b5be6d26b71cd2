package retrieval

import (
	"context"
	"math"
	"sync/atomic"
)

// Default BM25 parameters.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// BM25Config holds the BM25 free parameters.
type BM25Config struct {
	// K1 controls term-frequency saturation. Defaults to 1.5 if zero.
	K1 float64
	// B controls document-length normalisation (0 disables it). Negative
	// values select the default of 0.75.
	B float64
}

// DefaultBM25Config returns the standard k1=1.5, b=0.75 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: DefaultK1, B: DefaultB}
}

// BM25Retriever ranks documents with Okapi BM25.
type BM25Retriever struct {
	cfg BM25Config
	idx atomic.Pointer[lexicalIndex]
}

// NewBM25 constructs an unindexed BM25Retriever.
func NewBM25(cfg BM25Config) *BM25Retriever {
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultK1
	}
	if cfg.B < 0 || cfg.B > 1 {
		cfg.B = DefaultB
	}
	return &BM25Retriever{cfg: cfg}
}

// Index builds the BM25 statistics for corpus.
func (r *BM25Retriever) Index(corpus []Document) error {
	if !r.idx.CompareAndSwap(nil, buildIndex(corpus)) {
		return ErrAlreadyIndexed
	}
	return nil
}

// Retrieve returns the top-k documents for query ranked by BM25.
// An empty query scores every document 0 and returns corpus order.
func (r *BM25Retriever) Retrieve(ctx context.Context, query string, k int) ([]RankedDocument, error) {
	idx := r.idx.Load()
	if idx == nil {
		return nil, ErrNotIndexed
	}
	return idx.rank(ctx, query, k, r.score)
}

// score sums the BM25 contribution of every query term for document i.
func (r *BM25Retriever) score(idx *lexicalIndex, i int, queryTerms []string) float64 {
	tfs := idx.termFreqs[i]
	lengthRatio := 0.0
	if idx.avgDocLen > 0 {
		lengthRatio = float64(idx.docLens[i]) / idx.avgDocLen
	}
	norm := r.cfg.K1 * (1 - r.cfg.B + r.cfg.B*lengthRatio)

	total := 0.0
	for _, term := range queryTerms {
		tf := float64(tfs[term])
		if tf == 0 {
			continue
		}
		total += bm25IDF(idx.size(), idx.docFreq[term]) * (tf * (r.cfg.K1 + 1)) / (tf + norm)
	}
	return total
}

// bm25IDF is the Robertson/Sparck-Jones IDF with the +1 smoothing that keeps
// it positive even for terms present in every document.
func bm25IDF(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}
