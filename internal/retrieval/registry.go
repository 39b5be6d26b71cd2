package retrieval

import (
	"fmt"
	"strings"
)

// Kind enumerates the retriever variants a run can be configured with.
// Adding a variant means adding a constant here and an entry in factories.
type Kind string

const (
	// KindBM25 selects the Okapi BM25 retriever.
	KindBM25 Kind = "bm25"
	// KindTFIDF selects the TF-IDF retriever.
	KindTFIDF Kind = "tfidf"
)

// Options carries the settings any retriever factory may need.
type Options struct {
	// BM25 configures the BM25 variant.
	BM25 BM25Config
}

// Factory constructs a fresh, unindexed Retriever.
type Factory func(opts Options) Retriever

var factories = map[Kind]Factory{
	KindBM25: func(opts Options) Retriever {
		if opts.BM25 == (BM25Config{}) {
			return NewBM25(DefaultBM25Config())
		}
		return NewBM25(opts.BM25)
	},
	KindTFIDF: func(Options) Retriever { return NewTFIDF() },
}

// Kinds returns the registered retriever kinds in a stable order.
func Kinds() []Kind {
	return []Kind{KindBM25, KindTFIDF}
}

// Resolve normalises name to a registered Kind. The boolean is false when no
// retriever is registered under name.
func Resolve(name string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	_, ok := factories[k]
	return k, ok
}

// New resolves name against the registry and constructs a new Retriever.
// Unknown names return an error wrapping ErrUnknownRetriever.
func New(name string, opts Options) (Retriever, error) {
	k, ok := Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRetriever, name)
	}
	return factories[k](opts), nil
}
