// Package dataset loads benchmark inputs from JSON files: the corpus, the
// query set and the ground-truth relevance judgments.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/54b3r/ragbench-go/internal/retrieval"
)

// LoadCorpus reads a JSON array of {"id","text"} records. IDs must be
// non-empty and unique.
func LoadCorpus(path string) ([]retrieval.Document, error) {
	var docs []retrieval.Document
	if err := readJSON(path, &docs); err != nil {
		return nil, fmt.Errorf("dataset: corpus: %w", err)
	}
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.ID) == "" {
			return nil, fmt.Errorf("dataset: corpus: document %d has an empty id", i)
		}
		if _, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("dataset: corpus: duplicate document id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	return docs, nil
}

// LoadQueries reads a JSON array of {"query_id","text"} records. Query IDs
// must be non-empty and unique.
func LoadQueries(path string) ([]retrieval.Query, error) {
	var queries []retrieval.Query
	if err := readJSON(path, &queries); err != nil {
		return nil, fmt.Errorf("dataset: queries: %w", err)
	}
	seen := make(map[string]struct{}, len(queries))
	for i, q := range queries {
		if strings.TrimSpace(q.ID) == "" {
			return nil, fmt.Errorf("dataset: queries: query %d has an empty query_id", i)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("dataset: queries: duplicate query_id %q", q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return queries, nil
}

// LoadGroundTruth reads a JSON object mapping query IDs to relevant document
// IDs. An empty path or a missing file yields nil ground truth, under which
// only precision is computed.
func LoadGroundTruth(path string) (retrieval.GroundTruth, error) {
	if path == "" {
		return nil, nil
	}
	var gt retrieval.GroundTruth
	err := readJSON(path, &gt)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: ground truth: %w", err)
	}
	return gt, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
