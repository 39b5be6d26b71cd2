package retrieval

import (
	"context"
	"math"
	"sync/atomic"
)

// TFIDFRetriever ranks documents by the sum of tf*idf over query terms,
// normalised by the square root of the document length.
type TFIDFRetriever struct {
	idx atomic.Pointer[lexicalIndex]
}

// NewTFIDF constructs an unindexed TFIDFRetriever.
func NewTFIDF() *TFIDFRetriever {
	return &TFIDFRetriever{}
}

// Index builds the term statistics for corpus.
func (r *TFIDFRetriever) Index(corpus []Document) error {
	if !r.idx.CompareAndSwap(nil, buildIndex(corpus)) {
		return ErrAlreadyIndexed
	}
	return nil
}

// Retrieve returns the top-k documents for query ranked by TF-IDF.
func (r *TFIDFRetriever) Retrieve(ctx context.Context, query string, k int) ([]RankedDocument, error) {
	idx := r.idx.Load()
	if idx == nil {
		return nil, ErrNotIndexed
	}
	return idx.rank(ctx, query, k, scoreTFIDF)
}

func scoreTFIDF(idx *lexicalIndex, i int, queryTerms []string) float64 {
	if idx.docLens[i] == 0 {
		return 0
	}
	tfs := idx.termFreqs[i]
	total := 0.0
	for _, term := range queryTerms {
		tf := float64(tfs[term])
		if tf == 0 {
			continue
		}
		total += tf * smoothIDF(idx.size(), idx.docFreq[term])
	}
	return total / math.Sqrt(float64(idx.docLens[i]))
}

// smoothIDF is ln((N+1)/(df+1)) + 1, which is always positive.
func smoothIDF(n, df int) float64 {
	return math.Log(float64(n+1)/float64(df+1)) + 1
}
