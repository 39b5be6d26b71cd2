package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Request body shapes understood by HTTPScorer.
const (
	// FormatTEI posts {"query","texts"} as served by Hugging Face
	// text-embeddings-inference /rerank.
	FormatTEI = "tei"
	// FormatJina posts {"model","query","documents","top_n"} as served by
	// Jina, Voyage, vLLM and other Cohere-compatible /rerank endpoints.
	FormatJina = "jina"
)

// defaultScorerTimeout bounds a single scoring request.
const defaultScorerTimeout = 30 * time.Second

// maxScorerResponseBytes caps how much of a scorer response is read.
const maxScorerResponseBytes = 8 << 20

// HTTPConfig holds the settings for constructing an HTTPScorer.
type HTTPConfig struct {
	// Endpoint is the full URL of the rerank route. Env: SCORER_ENDPOINT.
	Endpoint string
	// Model is sent in the request body for FormatJina. Env: SCORER_MODEL.
	Model string
	// APIKey is sent as a bearer token when non-empty. Env: SCORER_API_KEY.
	APIKey string
	// Format selects the request body shape: FormatTEI (default) or FormatJina.
	Format string
	// Timeout bounds each request. Zero uses 30s. Env: SCORER_TIMEOUT_SECONDS.
	Timeout time.Duration
	// Limiter throttles requests when non-nil.
	Limiter *rate.Limiter
}

// HTTPScorer scores query-document pairs with a cross-encoder served over
// HTTP. It is safe for concurrent use.
type HTTPScorer struct {
	// endpoint is the rerank URL.
	endpoint string
	// model is forwarded for FormatJina requests.
	model string
	// apiKey is the optional bearer token.
	apiKey string
	// format is the request body shape.
	format string
	// limiter throttles outgoing requests; nil means unlimited.
	limiter *rate.Limiter
	// client is the shared HTTP client.
	client *http.Client
}

// NewHTTPScorer constructs an HTTPScorer. Endpoint is required.
func NewHTTPScorer(cfg *HTTPConfig) (*HTTPScorer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("rerank: http scorer: SCORER_ENDPOINT is required")
	}
	format := cfg.Format
	if format == "" {
		format = FormatTEI
	}
	if format != FormatTEI && format != FormatJina {
		return nil, fmt.Errorf("rerank: http scorer: unknown format %q, valid values: %s, %s", format, FormatTEI, FormatJina)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultScorerTimeout
	}
	return &HTTPScorer{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		format:   format,
		limiter:  cfg.Limiter,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// teiRequest is the body sent for FormatTEI.
type teiRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

// jinaRequest is the body sent for FormatJina.
type jinaRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

// indexedScore is one entry of either response shape.
type indexedScore struct {
	Index          int      `json:"index"`
	Score          *float64 `json:"score,omitempty"`
	RelevanceScore *float64 `json:"relevance_score,omitempty"`
}

// resultsResponse is the Cohere-compatible response envelope.
type resultsResponse struct {
	Results []indexedScore `json:"results"`
	Error   string         `json:"error,omitempty"`
}

// Score implements Scorer.
func (s *HTTPScorer) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("http scorer: rate limit wait: %w", err)
		}
	}

	var body any
	switch s.format {
	case FormatJina:
		body = jinaRequest{Model: s.model, Query: query, Documents: texts, TopN: len(texts)}
	default:
		body = teiRequest{Query: query, Texts: texts}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("http scorer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("http scorer: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http scorer: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxScorerResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("http scorer: read response: %w", err)
	}
	if len(raw) > maxScorerResponseBytes {
		return nil, fmt.Errorf("http scorer: response exceeds %d bytes", maxScorerResponseBytes)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		var env resultsResponse
		if json.Unmarshal(raw, &env) == nil && env.Error != "" {
			msg = env.Error
		}
		return nil, fmt.Errorf("http scorer: %s", msg)
	}

	entries, err := decodeScores(raw)
	if err != nil {
		return nil, err
	}
	return placeScores(entries, len(texts))
}

// decodeScores accepts a bare TEI array or a {"results": [...]} envelope.
func decodeScores(raw []byte) ([]indexedScore, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("http scorer: empty response body")
	}
	if trimmed[0] == '[' {
		var entries []indexedScore
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("http scorer: decode response: %w", err)
		}
		return entries, nil
	}
	var env resultsResponse
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("http scorer: decode response: %w", err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("http scorer: %s", env.Error)
	}
	return env.Results, nil
}

// placeScores maps index-tagged scores back onto input order. Every index in
// [0, n) must appear exactly once.
func placeScores(entries []indexedScore, n int) ([]float64, error) {
	if len(entries) != n {
		return nil, fmt.Errorf("%w: got %d scores for %d documents", ErrScoreCountMismatch, len(entries), n)
	}
	scores := make([]float64, n)
	seen := make([]bool, n)
	for _, e := range entries {
		if e.Index < 0 || e.Index >= n || seen[e.Index] {
			return nil, fmt.Errorf("%w: invalid or duplicate index %d", ErrScoreCountMismatch, e.Index)
		}
		switch {
		case e.Score != nil:
			scores[e.Index] = *e.Score
		case e.RelevanceScore != nil:
			scores[e.Index] = *e.RelevanceScore
		default:
			return nil, fmt.Errorf("http scorer: result for index %d has no score", e.Index)
		}
		seen[e.Index] = true
	}
	return scores, nil
}
