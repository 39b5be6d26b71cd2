// Package pipeline composes retrievers and rerankers into named strategies
// and runs every query through them. The base strategy of a retriever R is
// named "R"; each reranker G applied to R's output adds strategy "R+G".
// Rerankers always consume the base retrieval list, so strategies never chain.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/54b3r/ragbench-go/internal/rerank"
	"github.com/54b3r/ragbench-go/internal/retrieval"
)

// Config holds the orchestrator settings.
type Config struct {
	// RunID identifies the run in logs and metrics. Empty generates a UUID.
	RunID string

	// K is the top-K cutoff passed to every retriever. Must be >= 1.
	K int

	// Retrievers lists retriever names in strategy order.
	Retrievers []string

	// Rerankers lists reranker names applied to every retriever, in order.
	Rerankers []string

	// Concurrency bounds the number of queries processed at once.
	// Defaults to GOMAXPROCS if zero.
	Concurrency int

	// RetrieverOptions is passed to every retriever factory.
	RetrieverOptions retrieval.Options

	// RerankerOptions is passed to every reranker factory.
	RerankerOptions rerank.Options
}

// QueryResult is the ranked document IDs a strategy produced for one query.
type QueryResult struct {
	QueryID string
	DocIDs  []string
}

// StrategyOutput is every query result for one strategy, in query order.
type StrategyOutput struct {
	// Name is "R" or "R+G".
	Name string
	// Retriever is the base retriever name.
	Retriever string
	// Reranker is the reranker name; empty for a base strategy.
	Reranker string
	Results  []QueryResult
}

// Output is the result of one run.
type Output struct {
	// RunID identifies the run in logs and metrics.
	RunID string
	// Strategies holds one entry per surviving strategy: each retriever's
	// base strategy followed by its reranked strategies, in configured order.
	Strategies []StrategyOutput
}

// StrategyName returns "R" for an empty reranker and "R+G" otherwise.
func StrategyName(retriever, reranker string) string {
	if reranker == "" {
		return retriever
	}
	return retriever + "+" + reranker
}

type namedRetriever struct {
	name string
	r    retrieval.Retriever
}

// Orchestrator runs queries through every configured strategy.
type Orchestrator struct {
	cfg     Config
	log     *slog.Logger
	metrics *Metrics

	newRetriever func(name string, opts retrieval.Options) (retrieval.Retriever, error)
	newReranker  func(ctx context.Context, name string, opts rerank.Options) (rerank.Reranker, error)
}

// New validates cfg and returns an Orchestrator. A nil metrics registers
// against a private registry.
func New(cfg Config, log *slog.Logger, metrics *Metrics) (*Orchestrator, error) {
	if cfg.K < 1 {
		return nil, fmt.Errorf("pipeline: k must be >= 1 (got %d)", cfg.K)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Orchestrator{
		cfg:          cfg,
		log:          log,
		metrics:      metrics,
		newRetriever: retrieval.New,
		newReranker:  rerank.New,
	}, nil
}

// Run indexes corpus once per retriever and evaluates every query against
// every strategy. Unknown retriever or reranker names are logged and
// skipped. A reranker that fails on any query drops its strategy for that
// retriever; the base strategy and sibling strategies are unaffected. A
// retriever whose index is missing drops its base and reranked strategies
// only. Reranker construction errors and other retrieval errors abort the run.
func (o *Orchestrator) Run(ctx context.Context, corpus []retrieval.Document, queries []retrieval.Query) (*Output, error) {
	runID := o.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := o.log.With(slog.String("run_id", runID))
	o.metrics.RunInfo.WithLabelValues(runID).Set(1)

	retrievers, err := o.resolveRetrievers(log)
	if err != nil {
		return nil, err
	}
	rerankers, err := o.resolveRerankers(ctx, log)
	if err != nil {
		return nil, err
	}
	out := &Output{RunID: runID}
	if len(retrievers) == 0 {
		log.Warn("no usable retrievers configured, nothing to run")
		return out, nil
	}

	start := time.Now()
	if err := o.index(retrievers, corpus); err != nil {
		return nil, err
	}
	o.metrics.StageDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())
	log.Info("indexes built",
		slog.Int("retrievers", len(retrievers)),
		slog.Int("documents", len(corpus)),
		slog.Duration("elapsed", time.Since(start)),
	)

	// results[j][0] is retriever j's base strategy, results[j][g+1] its
	// reranked strategy g. Each query writes only its own index.
	results := make([][][]QueryResult, len(retrievers))
	retrieverFailed := make([]atomic.Bool, len(retrievers))
	failed := make([][]atomic.Bool, len(retrievers))
	for j := range retrievers {
		results[j] = make([][]QueryResult, len(rerankers)+1)
		for s := range results[j] {
			results[j][s] = make([]QueryResult, len(queries))
		}
		failed[j] = make([]atomic.Bool, len(rerankers))
	}

	start = time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			for j, nr := range retrievers {
				if retrieverFailed[j].Load() {
					continue
				}
				docs, err := nr.r.Retrieve(gctx, q.Text, o.cfg.K)
				if errors.Is(err, retrieval.ErrNotIndexed) {
					retrieverFailed[j].Store(true)
					log.Error("retriever not indexed, dropping its strategies",
						slog.String("retriever", nr.name),
						slog.String("query_id", q.ID),
						slog.String("error", err.Error()),
					)
					continue
				}
				if err != nil {
					return fmt.Errorf("pipeline: retrieve %s for query %q: %w", nr.name, q.ID, err)
				}
				o.metrics.RetrievalQueries.WithLabelValues(nr.name).Inc()
				results[j][0][i] = QueryResult{QueryID: q.ID, DocIDs: retrieval.IDs(docs)}

				for gi, rr := range rerankers {
					if failed[j][gi].Load() {
						continue
					}
					ranked, err := rr.Rerank(gctx, q.Text, docs)
					if errors.Is(err, rerank.ErrRerankFailure) {
						failed[j][gi].Store(true)
						o.metrics.RerankRequests.WithLabelValues(rr.Name(), outcomeFailure).Inc()
						log.Error("rerank failed, dropping strategy",
							slog.String("strategy", StrategyName(nr.name, rr.Name())),
							slog.String("query_id", q.ID),
							slog.String("error", err.Error()),
						)
						continue
					}
					if err != nil {
						return fmt.Errorf("pipeline: rerank %s for query %q: %w", rr.Name(), q.ID, err)
					}
					o.metrics.RerankRequests.WithLabelValues(rr.Name(), outcomeOK).Inc()
					results[j][gi+1][i] = QueryResult{QueryID: q.ID, DocIDs: rerank.IDs(ranked)}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	o.metrics.StageDuration.WithLabelValues("query").Observe(time.Since(start).Seconds())

	for j, nr := range retrievers {
		if retrieverFailed[j].Load() {
			o.metrics.StrategiesSkipped.WithLabelValues(SkipRetrieverFailure).Add(float64(len(rerankers) + 1))
			log.Warn("retriever dropped with all its strategies", slog.String("retriever", nr.name))
			continue
		}
		out.Strategies = append(out.Strategies, StrategyOutput{
			Name:      nr.name,
			Retriever: nr.name,
			Results:   results[j][0],
		})
		for gi, rr := range rerankers {
			name := StrategyName(nr.name, rr.Name())
			if failed[j][gi].Load() {
				o.metrics.StrategiesSkipped.WithLabelValues(SkipRerankFailure).Inc()
				log.Warn("strategy dropped after rerank failure", slog.String("strategy", name))
				continue
			}
			out.Strategies = append(out.Strategies, StrategyOutput{
				Name:      name,
				Retriever: nr.name,
				Reranker:  rr.Name(),
				Results:   results[j][gi+1],
			})
		}
	}
	log.Info("run complete",
		slog.Int("queries", len(queries)),
		slog.Int("strategies", len(out.Strategies)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// resolveRetrievers constructs each configured retriever once. Unknown and
// duplicate names are skipped.
func (o *Orchestrator) resolveRetrievers(log *slog.Logger) ([]namedRetriever, error) {
	seen := make(map[string]bool)
	var out []namedRetriever
	for _, name := range o.cfg.Retrievers {
		kind, ok := retrieval.Resolve(name)
		if ok && seen[string(kind)] {
			log.Debug("duplicate retriever ignored", slog.String("name", name))
			continue
		}
		r, err := o.newRetriever(name, o.cfg.RetrieverOptions)
		if errors.Is(err, retrieval.ErrUnknownRetriever) {
			o.metrics.StrategiesSkipped.WithLabelValues(SkipUnknownRetriever).Inc()
			log.Warn("unknown strategy, skipping",
				slog.String("kind", SkipUnknownRetriever),
				slog.String("name", name),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline: build retriever %q: %w", name, err)
		}
		seen[string(kind)] = true
		out = append(out, namedRetriever{name: string(kind), r: r})
	}
	return out, nil
}

// resolveRerankers constructs each configured reranker once. Unknown names
// are skipped; any other construction error is returned.
func (o *Orchestrator) resolveRerankers(ctx context.Context, log *slog.Logger) ([]rerank.Reranker, error) {
	seen := make(map[string]bool)
	var out []rerank.Reranker
	for _, name := range o.cfg.Rerankers {
		if kind, ok := rerank.Resolve(name); ok && seen[string(kind)] {
			log.Debug("duplicate reranker ignored", slog.String("name", name))
			continue
		}
		r, err := o.newReranker(ctx, name, o.cfg.RerankerOptions)
		if errors.Is(err, rerank.ErrUnknownReranker) {
			o.metrics.StrategiesSkipped.WithLabelValues(SkipUnknownReranker).Inc()
			log.Warn("unknown strategy, skipping",
				slog.String("kind", SkipUnknownReranker),
				slog.String("name", name),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("pipeline: build reranker %q: %w", name, err)
		}
		seen[r.Name()] = true
		out = append(out, r)
	}
	return out, nil
}

// index builds every retriever's index in parallel. All indexes are complete
// before Run issues its first Retrieve.
func (o *Orchestrator) index(retrievers []namedRetriever, corpus []retrieval.Document) error {
	var g errgroup.Group
	for _, nr := range retrievers {
		g.Go(func() error {
			if err := nr.r.Index(corpus); err != nil {
				return fmt.Errorf("pipeline: index %s: %w", nr.name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
