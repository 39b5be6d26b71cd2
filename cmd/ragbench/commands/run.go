package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/ragbench-go/internal/dataset"
	"github.com/54b3r/ragbench-go/internal/evaluation"
	"github.com/54b3r/ragbench-go/internal/logging"
	"github.com/54b3r/ragbench-go/internal/pipeline"
	"github.com/54b3r/ragbench-go/internal/report"
	"github.com/54b3r/ragbench-go/internal/retrieval"
)

// Defaults applied when neither a flag nor its env var is set.
const (
	defaultCorpusPath  = "data/corpus.json"
	defaultQueriesPath = "data/queries.json"
	defaultGTPath      = "data/qrels.json"
	defaultOutputDir   = "reports"
	defaultK           = 5
)

// runOptions holds the resolved settings of one `ragbench run` invocation.
type runOptions struct {
	corpus      string
	queries     string
	groundTruth string
	retrievers  []string
	rerankers   []string
	k           int
	outputDir   string
	concurrency int
	metricsFile string
}

// NewRunCmd constructs the `ragbench run` command, which executes every
// configured strategy over the query set and writes one report per strategy.
func NewRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the retrieval benchmark and write evaluation reports",
		Long: `Index the corpus with every configured retriever, run each query through
every strategy, evaluate the rankings against the ground truth and write
<strategy>_eval_report.csv and <strategy>_eval_report.json per strategy.

Unknown retriever or reranker names are logged and skipped. A reranker that
fails on a query drops its strategy; the remaining strategies still report.

Environment variables (flags take precedence):
  RAGBENCH_CORPUS, RAGBENCH_QUERIES, RAGBENCH_GT   Input JSON paths
  RAGBENCH_RETRIEVERS     Comma-separated retrievers (default: bm25,tfidf)
  RAGBENCH_RERANKERS      Comma-separated rerankers (default: none)
  RAGBENCH_K              Top-K cutoff (default: 5)
  RAGBENCH_OUTPUT_DIR     Report directory (default: reports)
  RAGBENCH_CONCURRENCY    Queries processed at once (default: GOMAXPROCS)
  BM25_K1, BM25_B         BM25 parameters (default: 1.5, 0.75)
  THRESHOLD_PRECISION, THRESHOLD_RECALL, THRESHOLD_NDCG
  SCORER_ENDPOINT, SCORER_FORMAT, SCORER_MODEL, SCORER_API_KEY, SCORER_RPS
  COHERE_API_KEY          Required by the cohere reranker
  MODEL_PROVIDER          LLM backend for the llm reranker (default: ollama)

Examples:
  ragbench run
  ragbench run --retrievers bm25 --rerankers identity,cross-encoder --k 10
  SCORER_ENDPOINT=http://localhost:8080/rerank ragbench run --rerankers bge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)
			opts.resolve(cmd)

			corpus, err := dataset.LoadCorpus(opts.corpus)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			queries, err := dataset.LoadQueries(opts.queries)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			gt, err := dataset.LoadGroundTruth(opts.groundTruth)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			log.Info("dataset loaded",
				slog.Int("documents", len(corpus)),
				slog.Int("queries", len(queries)),
				slog.Int("judged_queries", len(gt)),
			)

			engine, err := evaluation.NewEngine(opts.k, thresholdsFromEnv(log))
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			runID := uuid.NewString()
			reg := prometheus.NewRegistry()
			metrics := pipeline.NewMetrics(reg)

			rerankOpts, flush := rerankerOptions(log, runID, opts.rerankers)
			defer flush()

			orch, err := pipeline.New(pipeline.Config{
				RunID:            runID,
				K:                opts.k,
				Retrievers:       opts.retrievers,
				Rerankers:        opts.rerankers,
				Concurrency:      opts.concurrency,
				RetrieverOptions: retrieval.Options{BM25: bm25FromEnv()},
				RerankerOptions:  rerankOpts,
			}, log, metrics)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			out, err := orch.Run(ctx, corpus, queries)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			start := time.Now()
			reports := report.Aggregate(engine, gt, out.Strategies)
			metrics.StageDuration.WithLabelValues("evaluate").Observe(time.Since(start).Seconds())

			start = time.Now()
			writer := report.NewWriter(opts.outputDir, log, func(string) { metrics.ReportsWritten.Inc() })
			files, err := writer.WriteAll(reports)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			metrics.StageDuration.WithLabelValues("write").Observe(time.Since(start).Seconds())

			var rows []report.EvaluationRow
			for _, rep := range reports {
				rows = append(rows, rep.Rows...)
			}
			printRunHeader(cmd.OutOrStdout(), out.RunID, engine)
			if err := printSummaries(cmd.OutOrStdout(), report.Summarize(rows)); err != nil {
				return fmt.Errorf("run: %w", err)
			}

			if opts.metricsFile != "" {
				if err := prometheus.WriteToTextfile(opts.metricsFile, reg); err != nil {
					return fmt.Errorf("run: write metrics: %w", err)
				}
				log.Info("metrics written", slog.String("path", opts.metricsFile))
			}

			log.Info("benchmark complete",
				slog.String("run_id", out.RunID),
				slog.Int("strategies", len(out.Strategies)),
				slog.Int("reports", len(files)),
				slog.String("output_dir", opts.outputDir),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.corpus, "corpus", defaultCorpusPath, "Corpus JSON file: [{\"id\",\"text\"}]")
	cmd.Flags().StringVar(&opts.queries, "queries", defaultQueriesPath, "Query JSON file: [{\"query_id\",\"text\"}]")
	cmd.Flags().StringVar(&opts.groundTruth, "gt", defaultGTPath, "Ground truth JSON file: {query_id: [doc_id]} (optional)")
	cmd.Flags().StringSliceVarP(&opts.retrievers, "retrievers", "r", []string{string(retrieval.KindBM25), string(retrieval.KindTFIDF)}, "Retrievers to benchmark (repeatable or comma-separated)")
	cmd.Flags().StringSliceVarP(&opts.rerankers, "rerankers", "g", nil, "Rerankers applied to every retriever (identity, cross-encoder, cohere, llm)")
	cmd.Flags().IntVar(&opts.k, "k", defaultK, "Top-K cutoff for retrieval and metrics")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", defaultOutputDir, "Directory for report files")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Queries processed at once (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write run metrics in Prometheus text format to this path")

	return cmd
}

// resolve fills every option whose flag was not set from its env var.
func (o *runOptions) resolve(cmd *cobra.Command) {
	flags := cmd.Flags()
	if !flags.Changed("corpus") {
		o.corpus = getEnvOrDefault("RAGBENCH_CORPUS", o.corpus)
	}
	if !flags.Changed("queries") {
		o.queries = getEnvOrDefault("RAGBENCH_QUERIES", o.queries)
	}
	if !flags.Changed("gt") {
		o.groundTruth = getEnvOrDefault("RAGBENCH_GT", o.groundTruth)
	}
	if !flags.Changed("retrievers") {
		o.retrievers = getEnvList("RAGBENCH_RETRIEVERS", o.retrievers)
	}
	if !flags.Changed("rerankers") {
		o.rerankers = getEnvList("RAGBENCH_RERANKERS", o.rerankers)
	}
	if !flags.Changed("k") {
		o.k = getEnvInt("RAGBENCH_K", o.k)
	}
	if !flags.Changed("output-dir") {
		o.outputDir = getEnvOrDefault("RAGBENCH_OUTPUT_DIR", o.outputDir)
	}
	if !flags.Changed("concurrency") {
		o.concurrency = getEnvInt("RAGBENCH_CONCURRENCY", o.concurrency)
	}
}
