package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/54b3r/ragbench-go/internal/budget"
	"github.com/54b3r/ragbench-go/internal/tracing"
)

const llmSystemPrompt = "You are a relevance scoring system. You judge how well each document answers a search query and reply with JSON only."

// LLMConfig holds the settings for constructing an LLMScorer.
type LLMConfig struct {
	// MaxDocTokens caps the estimated tokens of each document placed in the
	// prompt. Zero uses budget.DefaultMaxDocTokens. Env: SCORER_MAX_DOC_TOKENS.
	MaxDocTokens int
	// MaxPromptTokens caps the estimated tokens of the whole prompt, system
	// message included. Zero disables the check. Env: SCORER_MAX_PROMPT_TOKENS.
	MaxPromptTokens int
	// Limiter throttles requests when non-nil.
	Limiter *rate.Limiter
	// Handlers receive callbacks for every chat model call, e.g. Langfuse.
	Handlers []callbacks.Handler
}

// LLMScorer asks a chat model to grade each document from 0.0 to 1.0.
type LLMScorer struct {
	chat            model.BaseChatModel
	maxDocTokens    int
	maxPromptTokens int
	limiter         *rate.Limiter
	handlers        []callbacks.Handler
}

// NewLLMScorer constructs an LLMScorer around chat.
func NewLLMScorer(chat model.BaseChatModel, cfg *LLMConfig) *LLMScorer {
	maxDoc := cfg.MaxDocTokens
	if maxDoc <= 0 {
		maxDoc = budget.DefaultMaxDocTokens
	}
	return &LLMScorer{
		chat:            chat,
		maxDocTokens:    maxDoc,
		maxPromptTokens: cfg.MaxPromptTokens,
		limiter:         cfg.Limiter,
		handlers:        cfg.Handlers,
	}
}

// llmScore is one entry of the model's JSON reply.
type llmScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float64 `json:"score"`
}

// llmReply is the JSON object the model is instructed to return.
type llmReply struct {
	Scores []llmScore `json:"scores"`
}

// Score implements Scorer. Scores are clamped to [0, 1]. A reply that omits
// a document or cannot be parsed is an error. A prompt over the configured
// token budget fails with ErrPromptTooLarge without calling the model.
func (s *LLMScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(llmSystemPrompt),
		schema.UserMessage(buildScoringPrompt(query, budget.TruncateAll(texts, s.maxDocTokens))),
	}
	if s.maxPromptTokens > 0 {
		if n := budget.EstimateMessages(msgs); n > s.maxPromptTokens {
			return nil, fmt.Errorf("llm scorer: %w: estimated %d tokens, limit %d", ErrPromptTooLarge, n, s.maxPromptTokens)
		}
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("llm scorer: rate limit wait: %w", err)
		}
	}
	ctx = tracing.WithChatModelRun(ctx, "llm-scorer", s.handlers...)
	resp, err := s.chat.Generate(ctx, msgs)
	if err != nil {
		return nil, fmt.Errorf("llm scorer: generate: %w", err)
	}
	return parseScoringReply(resp.Content, len(texts))
}

func buildScoringPrompt(query string, texts []string) string {
	var sb strings.Builder
	sb.WriteString("Score each document's relevance to the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nDocuments to score:\n")
	for i, t := range texts {
		fmt.Fprintf(&sb, "[Doc %d]: %s\n\n", i, t)
	}
	fmt.Fprintf(&sb, `Score every document from 0.0 to 1.0. There are %d documents, indexed 0 to %d.
Output ONLY valid JSON in this exact format:
{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.3}]}

Irrelevant documents score below 0.3, somewhat relevant 0.3-0.7, highly relevant above 0.7.`, len(texts), len(texts)-1)
	return sb.String()
}

// parseScoringReply extracts n scores from a model reply, tolerating a
// surrounding markdown code fence.
func parseScoringReply(reply string, n int) ([]float64, error) {
	body := stripCodeFence(strings.TrimSpace(reply))
	var parsed llmReply
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("llm scorer: parse reply: %w", err)
	}
	scores := make([]float64, n)
	seen := make([]bool, n)
	count := 0
	for _, e := range parsed.Scores {
		if e.DocIndex < 0 || e.DocIndex >= n || seen[e.DocIndex] {
			continue
		}
		scores[e.DocIndex] = min(max(e.Score, 0), 1)
		seen[e.DocIndex] = true
		count++
	}
	if count != n {
		return nil, fmt.Errorf("%w: reply scored %d of %d documents", ErrScoreCountMismatch, count, n)
	}
	return scores, nil
}

func stripCodeFence(s string) string {
	start := strings.Index(s, "```")
	if start == -1 {
		return s
	}
	rest := s[start+3:]
	rest = strings.TrimPrefix(rest, "json")
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
