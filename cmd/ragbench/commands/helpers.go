package commands

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"golang.org/x/time/rate"

	"github.com/54b3r/ragbench-go/internal/evaluation"
	"github.com/54b3r/ragbench-go/internal/provider"
	"github.com/54b3r/ragbench-go/internal/rerank"
	"github.com/54b3r/ragbench-go/internal/retrieval"
	"github.com/54b3r/ragbench-go/internal/tracing"
)

// defaultScorerTimeoutSeconds bounds each external scorer request.
const defaultScorerTimeoutSeconds = 30

// bm25FromEnv reads BM25_K1 and BM25_B, defaulting to k1=1.5, b=0.75.
func bm25FromEnv() retrieval.BM25Config {
	return retrieval.BM25Config{
		K1: getEnvFloat("BM25_K1", retrieval.DefaultK1),
		B:  getEnvFloat("BM25_B", retrieval.DefaultB),
	}
}

// thresholdsFromEnv returns the metric thresholds overridden through
// THRESHOLD_PRECISION, THRESHOLD_RECALL and THRESHOLD_NDCG.
func thresholdsFromEnv(log *slog.Logger) evaluation.Thresholds {
	keys := map[string]string{
		evaluation.MetricPrecision: "THRESHOLD_PRECISION",
		evaluation.MetricRecall:    "THRESHOLD_RECALL",
		evaluation.MetricNDCG:      "THRESHOLD_NDCG",
	}
	th := make(evaluation.Thresholds)
	for metric, key := range keys {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Warn("ignoring unparseable threshold",
				slog.String("key", key),
				slog.String("value", v),
			)
			continue
		}
		th[metric] = f
	}
	return th
}

// scorerLimiter returns a limiter allowing SCORER_RPS requests per second,
// or nil when SCORER_RPS is unset or not positive.
func scorerLimiter() *rate.Limiter {
	rps := getEnvFloat("SCORER_RPS", 0)
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), max(1, int(math.Ceil(rps))))
}

// rerankerOptions builds the options shared by every reranker factory.
// The returned flush must be called before exit; it sends buffered Langfuse
// traces when tracing is enabled and is a no-op otherwise.
func rerankerOptions(log *slog.Logger, runID string, rerankers []string) (rerank.Options, func()) {
	limiter := scorerLimiter()
	timeout := time.Duration(getEnvInt("SCORER_TIMEOUT_SECONDS", defaultScorerTimeoutSeconds)) * time.Second

	opts := rerank.Options{
		HTTP: rerank.HTTPConfig{
			Endpoint: os.Getenv("SCORER_ENDPOINT"),
			Model:    os.Getenv("SCORER_MODEL"),
			APIKey:   os.Getenv("SCORER_API_KEY"),
			Format:   getEnvOrDefault("SCORER_FORMAT", rerank.FormatTEI),
			Timeout:  timeout,
			Limiter:  limiter,
		},
		Cohere: rerank.CohereConfig{
			APIKey:  os.Getenv("COHERE_API_KEY"),
			Model:   os.Getenv("SCORER_MODEL"),
			Timeout: timeout,
			Limiter: limiter,
		},
		LLM: rerank.LLMConfig{
			MaxDocTokens:    getEnvInt("SCORER_MAX_DOC_TOKENS", 0),
			MaxPromptTokens: getEnvInt("SCORER_MAX_PROMPT_TOKENS", 0),
			Limiter:         limiter,
		},
		NewChatModel: func(ctx context.Context) (model.BaseChatModel, error) {
			cfg := provider.ConfigFromEnv()
			chat, err := provider.New(ctx, cfg)
			if err != nil {
				return nil, fmt.Errorf("model provider: %w", err)
			}
			log.Info("provider initialised",
				slog.String("provider", string(cfg.Backend)),
				slog.String("model", cfg.ModelName()),
			)
			return chat, nil
		},
	}

	noop := func() {}
	if !usesLLM(rerankers) {
		return opts, noop
	}

	// Setup Langfuse tracing: opt-in, no-op if keys are absent.
	tcfg := tracing.ConfigFromEnv()
	tcfg.SessionID = runID
	handler, flush, ok := tracing.Setup(tcfg)
	if !ok {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
		return opts, noop
	}
	opts.LLM.Handlers = []callbacks.Handler{handler}
	log.Info("langfuse tracing enabled", slog.String("host", tcfg.Host))
	return opts, flush
}

// usesLLM reports whether any configured reranker name resolves to the
// LLM-as-judge reranker.
func usesLLM(names []string) bool {
	for _, name := range names {
		if kind, ok := rerank.Resolve(name); ok && kind == rerank.KindLLM {
			return true
		}
	}
	return false
}

// splitList splits a comma-separated list, trimming blanks and dropping
// empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// flattenList splits every comma-separated element of values.
func flattenList(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, splitList(v)...)
	}
	return out
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float64 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvList returns the comma-separated list in the named environment
// variable, or fallback if it is unset or holds no entries.
func getEnvList(key string, fallback []string) []string {
	if l := splitList(os.Getenv(key)); len(l) > 0 {
		return l
	}
	return fallback
}
