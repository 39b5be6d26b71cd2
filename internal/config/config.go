// Package config provides YAML-based configuration for ragbench.
// Configuration is loaded with a layered precedence: defaults → YAML file →
// env vars → CLI flags. Environment variables always win over the file.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. RAGBENCH_CONFIG environment variable
//  3. ~/.ragbench/config.yaml
//  4. ./ragbench.yaml
//
// If no file is found the benchmark runs entirely from env vars and flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Run configures the strategies and inputs of a benchmark run.
	Run RunConfig `yaml:"run"`

	// BM25 holds the BM25 scoring parameters.
	BM25 BM25Config `yaml:"bm25"`

	// Thresholds overrides the pass/fail threshold of each metric.
	Thresholds ThresholdsConfig `yaml:"thresholds"`

	// Scorer configures the external relevance scorers used by rerankers.
	Scorer ScorerConfig `yaml:"scorer"`

	// Model configures the LLM used by the llm reranker.
	Model ModelConfig `yaml:"model"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing of LLM scoring calls.
	Tracing TracingConfig `yaml:"tracing"`
}

// RunConfig holds benchmark run settings.
type RunConfig struct {
	// K is the top-K cutoff.
	K int `yaml:"k"`
	// Retrievers lists retriever names, e.g. [bm25, tfidf].
	Retrievers []string `yaml:"retrievers"`
	// Rerankers lists reranker names applied to every retriever.
	Rerankers []string `yaml:"rerankers"`
	// OutputDir is the report output directory.
	OutputDir string `yaml:"output_dir"`
	// Concurrency bounds the number of queries processed at once.
	Concurrency int `yaml:"concurrency"`
	// Corpus is the corpus JSON path.
	Corpus string `yaml:"corpus"`
	// Queries is the query set JSON path.
	Queries string `yaml:"queries"`
	// GroundTruth is the relevance judgments JSON path.
	GroundTruth string `yaml:"ground_truth"`
}

// BM25Config holds BM25 parameters.
type BM25Config struct {
	// K1 is the term-frequency saturation parameter.
	K1 float64 `yaml:"k1"`
	// B is the length-normalisation parameter in [0, 1].
	B float64 `yaml:"b"`
}

// ThresholdsConfig holds per-metric pass thresholds.
type ThresholdsConfig struct {
	Precision float64 `yaml:"precision"`
	Recall    float64 `yaml:"recall"`
	NDCG      float64 `yaml:"ndcg"`
}

// ScorerConfig holds external scorer settings.
type ScorerConfig struct {
	// Endpoint is the cross-encoder rerank URL.
	Endpoint string `yaml:"endpoint"`
	// Format is the request body shape: tei or jina.
	Format string `yaml:"format"`
	// Model is the scorer model name, forwarded to jina-format and Cohere.
	Model string `yaml:"model"`
	// APIKey authenticates the cross-encoder endpoint. Prefer env var SCORER_API_KEY.
	APIKey string `yaml:"api_key"`
	// CohereAPIKey authenticates the Cohere API. Prefer env var COHERE_API_KEY.
	CohereAPIKey string `yaml:"cohere_api_key"`
	// RPS caps scorer requests per second; zero is unlimited.
	RPS float64 `yaml:"rps"`
	// TimeoutSeconds bounds each scorer request.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// MaxDocTokens caps each document in an LLM scoring prompt.
	MaxDocTokens int `yaml:"max_doc_tokens"`
	// MaxPromptTokens caps the whole LLM scoring prompt; zero disables the check.
	MaxPromptTokens int `yaml:"max_prompt_tokens"`
}

// ModelConfig holds LLM chat model settings.
type ModelConfig struct {
	// Provider selects the backend: ollama, openai, azure, ark, gemini.
	Provider string `yaml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness.
	Temperature float32 `yaml:"temperature"`

	Ollama OllamaConfig `yaml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Azure  AzureConfig  `yaml:"azure"`
	Ark    ArkConfig    `yaml:"ark"`
	Gemini GeminiConfig `yaml:"gemini"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// ArkConfig holds Volcano Engine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"RAGBENCH_K", func(c *Config) string { return intStr(c.Run.K) }},
	{"RAGBENCH_RETRIEVERS", func(c *Config) string { return listStr(c.Run.Retrievers) }},
	{"RAGBENCH_RERANKERS", func(c *Config) string { return listStr(c.Run.Rerankers) }},
	{"RAGBENCH_OUTPUT_DIR", func(c *Config) string { return c.Run.OutputDir }},
	{"RAGBENCH_CONCURRENCY", func(c *Config) string { return intStr(c.Run.Concurrency) }},
	{"RAGBENCH_CORPUS", func(c *Config) string { return c.Run.Corpus }},
	{"RAGBENCH_QUERIES", func(c *Config) string { return c.Run.Queries }},
	{"RAGBENCH_GT", func(c *Config) string { return c.Run.GroundTruth }},
	{"BM25_K1", func(c *Config) string { return float64Str(c.BM25.K1) }},
	{"BM25_B", func(c *Config) string { return float64Str(c.BM25.B) }},
	{"THRESHOLD_PRECISION", func(c *Config) string { return float64Str(c.Thresholds.Precision) }},
	{"THRESHOLD_RECALL", func(c *Config) string { return float64Str(c.Thresholds.Recall) }},
	{"THRESHOLD_NDCG", func(c *Config) string { return float64Str(c.Thresholds.NDCG) }},
	{"SCORER_ENDPOINT", func(c *Config) string { return c.Scorer.Endpoint }},
	{"SCORER_FORMAT", func(c *Config) string { return c.Scorer.Format }},
	{"SCORER_MODEL", func(c *Config) string { return c.Scorer.Model }},
	{"SCORER_API_KEY", func(c *Config) string { return c.Scorer.APIKey }},
	{"COHERE_API_KEY", func(c *Config) string { return c.Scorer.CohereAPIKey }},
	{"SCORER_RPS", func(c *Config) string { return float64Str(c.Scorer.RPS) }},
	{"SCORER_TIMEOUT_SECONDS", func(c *Config) string { return intStr(c.Scorer.TimeoutSeconds) }},
	{"SCORER_MAX_DOC_TOKENS", func(c *Config) string { return intStr(c.Scorer.MaxDocTokens) }},
	{"SCORER_MAX_PROMPT_TOKENS", func(c *Config) string { return intStr(c.Scorer.MaxPromptTokens) }},
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Model.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"OPENAI_BASE_URL", func(c *Config) string { return c.Model.OpenAI.BaseURL }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set, do not override
		}
		if err := os.Setenv(m.envKey, yamlVal); err != nil {
			return "", fmt.Errorf("config: set %s: %w", m.envKey, err)
		}
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("RAGBENCH_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".ragbench", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("ragbench.yaml"); err == nil {
		return "ragbench.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// float64Str converts a float64 to its shortest decimal form, returning ""
// for zero values.
func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// listStr joins a YAML list into the comma-separated env form.
func listStr(v []string) string {
	return strings.Join(v, ",")
}
