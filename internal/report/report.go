// Package report aggregates per-query evaluation rows per strategy and
// persists them as a CSV table and a JSON list of records.
package report

import (
	"errors"

	"github.com/54b3r/ragbench-go/internal/evaluation"
	"github.com/54b3r/ragbench-go/internal/pipeline"
	"github.com/54b3r/ragbench-go/internal/retrieval"
)

// ErrEmptyReport is returned by Writer.Write for a report with no rows.
// Callers treat it as an informational no-op.
var ErrEmptyReport = errors.New("report: report has no rows")

// EvaluationRow is the evaluation of one query under one strategy.
type EvaluationRow struct {
	// QueryID identifies the evaluated query.
	QueryID string `json:"query_id"`
	// Strategy is the strategy name, "R" or "R+G".
	Strategy string `json:"strategy"`
	// MetricResults holds the metrics computed for the query. Recall and NDCG
	// are absent when the query has no ground truth.
	MetricResults map[string]evaluation.MetricResult `json:"metric_results"`
	// RetrievedDocIDs is the ranked list the strategy produced.
	RetrievedDocIDs []string `json:"retrieved_doc_ids"`
}

// Report is the ordered list of rows for one strategy.
type Report struct {
	Strategy string
	Rows     []EvaluationRow
}

// Aggregate evaluates every strategy output and returns one Report per
// strategy, preserving strategy and query order.
func Aggregate(engine *evaluation.Engine, gt retrieval.GroundTruth, outputs []pipeline.StrategyOutput) []Report {
	reports := make([]Report, 0, len(outputs))
	for _, out := range outputs {
		reports = append(reports, Build(engine, gt, out))
	}
	return reports
}

// Build evaluates one strategy's results into a Report.
func Build(engine *evaluation.Engine, gt retrieval.GroundTruth, out pipeline.StrategyOutput) Report {
	rows := make([]EvaluationRow, 0, len(out.Results))
	for _, r := range out.Results {
		ids := r.DocIDs
		if ids == nil {
			ids = []string{}
		}
		rows = append(rows, EvaluationRow{
			QueryID:         r.QueryID,
			Strategy:        out.Name,
			MetricResults:   engine.EvaluateQuery(ids, gt.Relevant(r.QueryID)),
			RetrievedDocIDs: ids,
		})
	}
	return Report{Strategy: out.Name, Rows: rows}
}
