package rerank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/model"
)

// Kind names a registered reranker.
type Kind string

const (
	// KindIdentity keeps the retriever order.
	KindIdentity Kind = "identity"
	// KindCrossEncoder scores with an HTTP cross-encoder service.
	KindCrossEncoder Kind = "cross-encoder"
	// KindCohere scores with the Cohere rerank API.
	KindCohere Kind = "cohere"
	// KindLLM scores with a chat model acting as a judge.
	KindLLM Kind = "llm"
)

// aliases maps alternative names onto registered kinds.
var aliases = map[string]Kind{
	"bge":       KindCrossEncoder,
	"crossenc":  KindCrossEncoder,
	"llm-judge": KindLLM,
}

// Options carries the settings every factory may draw from.
type Options struct {
	HTTP   HTTPConfig
	Cohere CohereConfig
	LLM    LLMConfig
	// NewChatModel builds the chat model for KindLLM. Required for that kind only.
	NewChatModel func(ctx context.Context) (model.BaseChatModel, error)
}

// Factory constructs a reranker from Options.
type Factory func(ctx context.Context, opts Options) (Reranker, error)

var factories = map[Kind]Factory{
	KindIdentity: func(context.Context, Options) (Reranker, error) {
		return NewIdentity(), nil
	},
	KindCrossEncoder: func(_ context.Context, opts Options) (Reranker, error) {
		s, err := NewHTTPScorer(&opts.HTTP)
		if err != nil {
			return nil, err
		}
		return NewExternalScoring(string(KindCrossEncoder), s), nil
	},
	KindCohere: func(_ context.Context, opts Options) (Reranker, error) {
		s, err := NewCohereScorer(&opts.Cohere)
		if err != nil {
			return nil, err
		}
		return NewExternalScoring(string(KindCohere), s), nil
	},
	KindLLM: func(ctx context.Context, opts Options) (Reranker, error) {
		if opts.NewChatModel == nil {
			return nil, fmt.Errorf("rerank: llm reranker requires a chat model constructor")
		}
		chat, err := opts.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("rerank: llm reranker: %w", err)
		}
		return NewExternalScoring(string(KindLLM), NewLLMScorer(chat, &opts.LLM)), nil
	},
}

// Kinds returns the registered reranker names in sorted order.
func Kinds() []string {
	names := make([]string, 0, len(factories))
	for k := range factories {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// Resolve normalises name and maps aliases onto their kind. The boolean is
// false when no reranker is registered under name.
func Resolve(name string) (Kind, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if k, ok := aliases[n]; ok {
		return k, true
	}
	k := Kind(n)
	_, ok := factories[k]
	return k, ok
}

// New constructs the reranker registered under name. Unknown names return an
// error wrapping ErrUnknownReranker.
func New(ctx context.Context, name string, opts Options) (Reranker, error) {
	k, ok := Resolve(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (valid: %s)", ErrUnknownReranker, name, strings.Join(Kinds(), ", "))
	}
	return factories[k](ctx, opts)
}
