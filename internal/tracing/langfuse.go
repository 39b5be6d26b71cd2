// Package tracing wires Langfuse tracing into LLM-backed reranking.
package tracing

import (
	"context"
	"os"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
)

// Config holds Langfuse connection settings.
type Config struct {
	// Host is the Langfuse base URL. Env: LANGFUSE_HOST (default http://localhost:3000).
	Host string
	// PublicKey env: LANGFUSE_PUBLIC_KEY.
	PublicKey string
	// SecretKey env: LANGFUSE_SECRET_KEY.
	SecretKey string
	// SessionID groups every trace of one benchmark run.
	SessionID string
}

// ConfigFromEnv reads Langfuse settings from the environment.
func ConfigFromEnv() Config {
	host := os.Getenv("LANGFUSE_HOST")
	if host == "" {
		host = "http://localhost:3000"
	}
	return Config{
		Host:      host,
		PublicKey: os.Getenv("LANGFUSE_PUBLIC_KEY"),
		SecretKey: os.Getenv("LANGFUSE_SECRET_KEY"),
	}
}

// Enabled reports whether both credentials are present.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// Setup initialises the Langfuse callback handler when cfg is enabled. The
// returned flush function must be called before process exit so buffered
// traces are sent. When tracing is not configured the handler and flush are
// nil and ok is false.
func Setup(cfg Config) (handler callbacks.Handler, flush func(), ok bool) {
	if !cfg.Enabled() {
		return nil, nil, false
	}
	handler, flush = langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
		Name:      "ragbench",
		SessionID: cfg.SessionID,
	})
	return handler, flush, true
}

// WithChatModelRun returns a context that reports chat model calls made
// under it to handlers, labelled name. With no handlers ctx is returned
// unchanged.
func WithChatModelRun(ctx context.Context, name string, handlers ...callbacks.Handler) context.Context {
	if len(handlers) == 0 {
		return ctx
	}
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      "LLMScorer",
		Component: components.ComponentOfChatModel,
	}, handlers...)
}
