package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/54b3r/ragbench-go/internal/evaluation"
	"github.com/54b3r/ragbench-go/internal/report"
)

// printRunHeader writes the run ID, the cutoff and the pass threshold of
// every metric ahead of the summary table.
func printRunHeader(w io.Writer, runID string, engine *evaluation.Engine) {
	parts := []string{"run " + runID, fmt.Sprintf("k=%d", engine.K())}
	for _, name := range evaluation.MetricNames() {
		parts = append(parts, fmt.Sprintf("%s>=%.2f", name, engine.Threshold(name)))
	}
	fmt.Fprintln(w, strings.Join(parts, "  "))
}

// printSummaries writes one aligned row per strategy: the mean of each metric
// and how many evaluated queries passed its threshold.
func printSummaries(w io.Writer, summaries []report.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"STRATEGY", "QUERIES"}
	header = append(header, evaluation.MetricNames()...)
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, s := range summaries {
		cells := []string{s.Strategy, fmt.Sprintf("%d", s.Queries)}
		for _, name := range evaluation.MetricNames() {
			n := s.Evaluated[name]
			if n == 0 {
				cells = append(cells, "-")
				continue
			}
			cells = append(cells, fmt.Sprintf("%.3f (%d/%d pass)", s.Means[name], s.Passes[name], n))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

// printFailures writes one aligned row per failing query. queryText maps
// query IDs to their text and may be nil.
func printFailures(w io.Writer, rows []report.EvaluationRow, queryText map[string]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"STRATEGY", "QUERY_ID"}
	header = append(header, evaluation.MetricNames()...)
	header = append(header, "QUERY", "RETRIEVED")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range rows {
		cells := []string{row.Strategy, row.QueryID}
		for _, name := range evaluation.MetricNames() {
			res, ok := row.MetricResults[name]
			if !ok {
				cells = append(cells, "-")
				continue
			}
			cells = append(cells, fmt.Sprintf("%.3f", res.Value))
		}
		text := queryText[row.QueryID]
		if text == "" {
			text = "-"
		}
		cells = append(cells, text, strings.Join(row.RetrievedDocIDs, ","))
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}
