package report

import (
	"sort"

	"github.com/54b3r/ragbench-go/internal/evaluation"
)

// Summary is the per-strategy overview of a report.
type Summary struct {
	Strategy string `json:"strategy"`
	// Queries is the number of rows for the strategy.
	Queries int `json:"queries"`
	// Means holds the mean value of each metric over the rows that carry it.
	Means map[string]float64 `json:"means"`
	// Passes counts the rows whose metric passed its threshold.
	Passes map[string]int `json:"passes"`
	// Evaluated counts the rows that carry each metric.
	Evaluated map[string]int `json:"evaluated"`
}

// Summarize groups rows by strategy and returns one Summary per strategy in
// order of first appearance.
func Summarize(rows []EvaluationRow) []Summary {
	index := make(map[string]int)
	var out []Summary
	sums := make(map[string]map[string]float64)
	for _, row := range rows {
		i, ok := index[row.Strategy]
		if !ok {
			i = len(out)
			index[row.Strategy] = i
			out = append(out, Summary{
				Strategy:  row.Strategy,
				Means:     make(map[string]float64),
				Passes:    make(map[string]int),
				Evaluated: make(map[string]int),
			})
			sums[row.Strategy] = make(map[string]float64)
		}
		s := &out[i]
		s.Queries++
		for name, res := range row.MetricResults {
			sums[row.Strategy][name] += res.Value
			s.Evaluated[name]++
			if res.Status == evaluation.StatusPass {
				s.Passes[name]++
			}
		}
	}
	for i := range out {
		for name, n := range out[i].Evaluated {
			out[i].Means[name] = sums[out[i].Strategy][name] / float64(n)
		}
	}
	return out
}

// FailurePredicate flags rows with any metric below its minimum. Metrics a
// row does not carry are not checked.
type FailurePredicate struct {
	MinPrecision float64
	MinRecall    float64
	MinNDCG      float64
}

// DefaultFailurePredicate returns minimums 0.2 / 0.5 / 0.5.
func DefaultFailurePredicate() FailurePredicate {
	return FailurePredicate{MinPrecision: 0.2, MinRecall: 0.5, MinNDCG: 0.5}
}

// Fails reports whether row is below any minimum.
func (p FailurePredicate) Fails(row EvaluationRow) bool {
	mins := map[string]float64{
		evaluation.MetricPrecision: p.MinPrecision,
		evaluation.MetricRecall:    p.MinRecall,
		evaluation.MetricNDCG:      p.MinNDCG,
	}
	for name, limit := range mins {
		if res, ok := row.MetricResults[name]; ok && res.Value < limit {
			return true
		}
	}
	return false
}

// Filter returns the rows that fail pred, ordered by ascending precision.
// Rows with equal precision keep their input order.
func Filter(rows []EvaluationRow, pred FailurePredicate) []EvaluationRow {
	var out []EvaluationRow
	for _, row := range rows {
		if pred.Fails(row) {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MetricResults[evaluation.MetricPrecision].Value < out[j].MetricResults[evaluation.MetricPrecision].Value
	})
	return out
}
