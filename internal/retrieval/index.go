package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/54b3r/ragbench-go/internal/tokenizer"
)

// lexicalIndex holds the corpus term statistics shared by the lexical
// retrievers. It is never mutated after build returns.
type lexicalIndex struct {
	// docs references the corpus in insertion order.
	docs []Document
	// termFreqs[i] maps each term of docs[i] to its count.
	termFreqs []map[string]int
	// docLens[i] is the number of terms in docs[i].
	docLens []int
	// avgDocLen is the mean of docLens.
	avgDocLen float64
	// docFreq maps each distinct term to the number of documents containing it.
	docFreq map[string]int
}

// buildIndex tokenises every document and computes the corpus statistics.
func buildIndex(corpus []Document) *lexicalIndex {
	idx := &lexicalIndex{
		docs:      corpus,
		termFreqs: make([]map[string]int, len(corpus)),
		docLens:   make([]int, len(corpus)),
		docFreq:   make(map[string]int),
	}

	total := 0
	for i, doc := range corpus {
		terms := tokenizer.Tokenize(doc.Text)
		tf := tokenizer.TermFrequencies(terms)
		idx.termFreqs[i] = tf
		idx.docLens[i] = len(terms)
		total += len(terms)
		for term := range tf {
			idx.docFreq[term]++
		}
	}
	if len(corpus) > 0 {
		idx.avgDocLen = float64(total) / float64(len(corpus))
	}
	return idx
}

// size returns the number of indexed documents.
func (idx *lexicalIndex) size() int { return len(idx.docs) }

// scoreFunc scores document i against the tokenised query.
type scoreFunc func(idx *lexicalIndex, i int, queryTerms []string) float64

// rank scores every document, sorts by descending score with corpus order
// as the tie-break, and returns the first k.
func (idx *lexicalIndex) rank(ctx context.Context, query string, k int, score scoreFunc) ([]RankedDocument, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidK, k)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	queryTerms := tokenizer.Tokenize(query)

	scored := make([]RankedDocument, idx.size())
	for i, doc := range idx.docs {
		s := 0.0
		if len(queryTerms) > 0 {
			s = score(idx, i, queryTerms)
		}
		scored[i] = RankedDocument{ID: doc.ID, Text: doc.Text, Score: s}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}
