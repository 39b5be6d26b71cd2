package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragbench-go/internal/dataset"
	"github.com/54b3r/ragbench-go/internal/logging"
	"github.com/54b3r/ragbench-go/internal/report"
)

// NewInspectCmd constructs the `ragbench inspect` command, which summarises
// previously written JSON reports and lists the queries that fail.
func NewInspectCmd() *cobra.Command {
	var reports []string
	var queriesPath string
	var failures bool
	pred := report.DefaultFailurePredicate()

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Summarise JSON reports and list failing queries",
		Long: `Load one or more <strategy>_eval_report.json files and print per-strategy
metric means and pass counts.

With --failures, also list every query whose precision, recall or NDCG falls
below the given minimums, worst precision first. Pass --queries to show the
query text next to each failure.

Examples:
  ragbench inspect --report reports/bm25_eval_report.json
  ragbench inspect --report reports/bm25_eval_report.json,reports/bm25+identity_eval_report.json --failures
  ragbench inspect -f reports/tfidf_eval_report.json --failures --min-recall 0.8 --queries data/queries.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.FromContext(cmd.Context())

			paths := flattenList(reports)
			if len(paths) == 0 {
				return fmt.Errorf("inspect: at least one --report is required")
			}

			var rows []report.EvaluationRow
			for _, p := range paths {
				loaded, err := report.Load(p)
				if err != nil {
					return fmt.Errorf("inspect: %w", err)
				}
				log.Debug("report loaded", slog.String("path", p), slog.Int("rows", len(loaded)))
				rows = append(rows, loaded...)
			}

			out := cmd.OutOrStdout()
			if err := printSummaries(out, report.Summarize(rows)); err != nil {
				return fmt.Errorf("inspect: %w", err)
			}
			if !failures {
				return nil
			}

			var queryText map[string]string
			if queriesPath != "" {
				queries, err := dataset.LoadQueries(queriesPath)
				if err != nil {
					return fmt.Errorf("inspect: %w", err)
				}
				queryText = make(map[string]string, len(queries))
				for _, q := range queries {
					queryText[q.ID] = q.Text
				}
			}

			failing := report.Filter(rows, pred)
			fmt.Fprintf(out, "\n%d failing queries\n", len(failing))
			if len(failing) == 0 {
				return nil
			}
			if err := printFailures(out, failing, queryText); err != nil {
				return fmt.Errorf("inspect: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&reports, "report", "f", nil, "JSON report to load (repeatable or comma-separated)")
	cmd.Flags().StringVar(&queriesPath, "queries", "", "Query JSON file used to show query text (optional)")
	cmd.Flags().BoolVar(&failures, "failures", false, "List queries below the minimums")
	cmd.Flags().Float64Var(&pred.MinPrecision, "min-precision", pred.MinPrecision, "Minimum precision before a query is listed")
	cmd.Flags().Float64Var(&pred.MinRecall, "min-recall", pred.MinRecall, "Minimum recall before a query is listed")
	cmd.Flags().Float64Var(&pred.MinNDCG, "min-ndcg", pred.MinNDCG, "Minimum NDCG before a query is listed")

	return cmd
}
