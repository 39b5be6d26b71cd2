package rerank

import (
	"context"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"golang.org/x/time/rate"
)

// DefaultCohereModel is the rerank model used when none is configured.
const DefaultCohereModel = "rerank-v3.5"

// CohereConfig holds the settings for constructing a CohereScorer.
type CohereConfig struct {
	// APIKey authenticates against the Cohere API. Env: COHERE_API_KEY.
	APIKey string
	// Model is the rerank model. Empty uses DefaultCohereModel. Env: SCORER_MODEL.
	Model string
	// Timeout bounds each request. Zero uses 30s.
	Timeout time.Duration
	// Limiter throttles requests when non-nil.
	Limiter *rate.Limiter
}

// CohereScorer scores documents with the Cohere v2 rerank endpoint.
type CohereScorer struct {
	model   string
	limiter *rate.Limiter
	// rerank performs the API call; replaced in tests.
	rerank func(ctx context.Context, req *cohere.V2RerankRequest) (*cohere.V2RerankResponse, error)
}

// NewCohereScorer constructs a CohereScorer. APIKey is required.
func NewCohereScorer(cfg *CohereConfig) (*CohereScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("rerank: cohere scorer: COHERE_API_KEY is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultScorerTimeout
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(cfg.APIKey),
		cohereclient.WithHTTPClient(&http.Client{Timeout: timeout}),
	)
	s := newCohereScorer(cfg, nil)
	s.rerank = func(ctx context.Context, req *cohere.V2RerankRequest) (*cohere.V2RerankResponse, error) {
		return client.V2.Rerank(ctx, req)
	}
	return s, nil
}

func newCohereScorer(cfg *CohereConfig, call func(context.Context, *cohere.V2RerankRequest) (*cohere.V2RerankResponse, error)) *CohereScorer {
	model := cfg.Model
	if model == "" {
		model = DefaultCohereModel
	}
	return &CohereScorer{model: model, limiter: cfg.Limiter, rerank: call}
}

// Score implements Scorer.
func (s *CohereScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("cohere scorer: rate limit wait: %w", err)
		}
	}
	topN := len(texts)
	resp, err := s.rerank(ctx, &cohere.V2RerankRequest{
		Model:     s.model,
		Query:     query,
		Documents: texts,
		TopN:      &topN,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere scorer: rerank request failed: %w", err)
	}
	entries := make([]indexedScore, len(resp.Results))
	for i, r := range resp.Results {
		score := r.RelevanceScore
		entries[i] = indexedScore{Index: r.Index, Score: &score}
	}
	return placeScores(entries, len(texts))
}
