// Package evaluation computes the per-query retrieval quality metrics
// (Precision@K, Recall@K, NDCG@K with binary relevance) and pairs each with a
// pass/fail verdict against a configured threshold.
//
// Metric keys carry the literal "@5" cutoff used by the report schema and
// the threshold table. The cutoff actually applied is the engine's k.
package evaluation

import (
	"errors"
	"fmt"
	"math"
)

// Metric names, used as map keys, report column prefixes and threshold keys.
const (
	MetricPrecision = "precision@5"
	MetricRecall    = "recall@5"
	MetricNDCG      = "ndcg@5"
)

// Default thresholds applied when a run does not override them.
const (
	DefaultPrecisionThreshold = 0.2
	DefaultRecallThreshold    = 0.5
	DefaultNDCGThreshold      = 0.5
)

// ErrInvalidK is returned by NewEngine when k is below 1.
var ErrInvalidK = errors.New("evaluation: k must be >= 1")

// MetricNames returns the metric names in report column order.
func MetricNames() []string {
	return []string{MetricPrecision, MetricRecall, MetricNDCG}
}

// Status is the pass/fail verdict of one metric.
type Status string

const (
	// StatusPass means value >= threshold.
	StatusPass Status = "pass"
	// StatusFail means value < threshold.
	StatusFail Status = "fail"
)

// MetricResult is one computed metric with its verdict.
type MetricResult struct {
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Status    Status  `json:"status"`
}

// Thresholds maps a metric name to its minimum passing value.
type Thresholds map[string]float64

// DefaultThresholds returns precision@5=0.2, recall@5=0.5, ndcg@5=0.5.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MetricPrecision: DefaultPrecisionThreshold,
		MetricRecall:    DefaultRecallThreshold,
		MetricNDCG:      DefaultNDCGThreshold,
	}
}

// Engine evaluates ranked results for a fixed k and threshold table.
// It is immutable and safe for concurrent use.
type Engine struct {
	k          int
	thresholds Thresholds
}

// NewEngine returns an Engine for cutoff k. Entries in overrides replace the
// defaults; metrics not mentioned keep their default threshold.
func NewEngine(k int, overrides Thresholds) (*Engine, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidK, k)
	}
	th := DefaultThresholds()
	for name, v := range overrides {
		th[name] = v
	}
	return &Engine{k: k, thresholds: th}, nil
}

// K returns the cutoff the engine evaluates at.
func (e *Engine) K() int { return e.k }

// Threshold returns the threshold configured for metric.
func (e *Engine) Threshold(metric string) float64 { return e.thresholds[metric] }

// EvaluateQuery scores one query's ranked document IDs against its relevant
// set. An empty retrieval returns an empty map. Precision is always present;
// Recall and NDCG are present only when relevant is non-empty.
func (e *Engine) EvaluateQuery(retrieved []string, relevant map[string]struct{}) map[string]MetricResult {
	results := make(map[string]MetricResult)
	if len(retrieved) == 0 {
		return results
	}

	working := retrieved
	if len(working) > e.k {
		working = working[:e.k]
	}

	hits := 0
	for _, id := range working {
		if _, ok := relevant[id]; ok {
			hits++
		}
	}

	results[MetricPrecision] = e.verdict(MetricPrecision, float64(hits)/float64(e.k))

	if len(relevant) == 0 {
		return results
	}

	results[MetricRecall] = e.verdict(MetricRecall, float64(hits)/float64(len(relevant)))
	results[MetricNDCG] = e.verdict(MetricNDCG, ndcg(working, relevant, e.k))

	return results
}

// verdict pairs value with the metric threshold.
func (e *Engine) verdict(metric string, value float64) MetricResult {
	threshold := e.thresholds[metric]
	status := StatusFail
	if value >= threshold {
		status = StatusPass
	}
	return MetricResult{Value: value, Threshold: threshold, Status: status}
}

// ndcg computes binary-relevance NDCG over working. The ideal ranking places
// min(|relevant|, k) relevant documents at the top positions.
func ndcg(working []string, relevant map[string]struct{}, k int) float64 {
	dcg := 0.0
	for i, id := range working {
		if _, ok := relevant[id]; ok {
			dcg += discount(i)
		}
	}

	ideal := 0.0
	for i := range min(len(relevant), k) {
		ideal += discount(i)
	}
	if ideal == 0 {
		return 0
	}
	return dcg / ideal
}

// discount is the DCG weight of 0-indexed position i.
func discount(i int) float64 {
	return 1 / math.Log2(float64(i+2))
}
