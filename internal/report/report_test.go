package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/54b3r/ragbench-go/internal/evaluation"
	"github.com/54b3r/ragbench-go/internal/pipeline"
	"github.com/54b3r/ragbench-go/internal/retrieval"
)

func testEngine(t *testing.T) *evaluation.Engine {
	t.Helper()
	e, err := evaluation.NewEngine(5, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func testOutputs() []pipeline.StrategyOutput {
	return []pipeline.StrategyOutput{
		{
			Name:      "bm25",
			Retriever: "bm25",
			Results: []pipeline.QueryResult{
				{QueryID: "q1", DocIDs: []string{"d1", "d2", "d3", "d4", "d5"}},
				{QueryID: "q2", DocIDs: []string{"d9", "d8"}},
			},
		},
		{
			Name:      "bm25+cross-encoder",
			Retriever: "bm25",
			Reranker:  "cross-encoder",
			Results: []pipeline.QueryResult{
				{QueryID: "q1", DocIDs: []string{"d3", "d1", "d2", "d4", "d5"}},
				{QueryID: "q2", DocIDs: []string{"d8", "d9"}},
			},
		},
	}
}

var testGT = retrieval.GroundTruth{"q1": {"d1", "d3"}}

func TestAggregate(t *testing.T) {
	t.Parallel()
	reports := Aggregate(testEngine(t), testGT, testOutputs())
	if len(reports) != 2 {
		t.Fatalf("reports = %d, want 2", len(reports))
	}
	rep := reports[0]
	if rep.Strategy != "bm25" || len(rep.Rows) != 2 {
		t.Fatalf("report = %+v", rep)
	}

	q1 := rep.Rows[0]
	if q1.QueryID != "q1" || q1.Strategy != "bm25" {
		t.Errorf("row = %+v", q1)
	}
	if got := q1.MetricResults[evaluation.MetricPrecision].Value; got != 0.4 {
		t.Errorf("precision = %v, want 0.4", got)
	}
	if got := q1.MetricResults[evaluation.MetricRecall].Value; got != 1 {
		t.Errorf("recall = %v, want 1", got)
	}

	// q2 has no ground truth: precision only
	q2 := rep.Rows[1]
	if len(q2.MetricResults) != 1 {
		t.Errorf("q2 metrics = %v, want precision only", q2.MetricResults)
	}
	if q2.MetricResults[evaluation.MetricPrecision].Status != evaluation.StatusFail {
		t.Errorf("q2 precision status = %v, want fail", q2.MetricResults[evaluation.MetricPrecision].Status)
	}

	// reranked strategy promotes d3, raising NDCG
	base := q1.MetricResults[evaluation.MetricNDCG].Value
	reranked := reports[1].Rows[0].MetricResults[evaluation.MetricNDCG].Value
	if reranked != 1 || base >= reranked {
		t.Errorf("ndcg base=%v reranked=%v, want reranked=1 > base", base, reranked)
	}
}

func TestFileBase(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"bm25":               "bm25_eval_report",
		"bm25+cross-encoder": "bm25+cross-encoder_eval_report",
		"../etc/passwd":      ".._etc_passwd_eval_report",
		"a b":                "a_b_eval_report",
	}
	for in, want := range cases {
		if got := FileBase(in); got != want {
			t.Errorf("FileBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriter_WritesCSVAndJSON(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	var written []string
	w := NewWriter(dir, nil, func(s string) { written = append(written, s) })

	rep := Aggregate(testEngine(t), testGT, testOutputs())[0]
	files, err := w.Write(rep)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Base(files.CSV) != "bm25_eval_report.csv" || filepath.Base(files.JSON) != "bm25_eval_report.json" {
		t.Errorf("files = %+v", files)
	}
	if len(written) != 1 || written[0] != "bm25" {
		t.Errorf("onWrite calls = %v", written)
	}

	csvData, err := os.ReadFile(files.CSV)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	if len(lines) != 3 {
		t.Fatalf("csv lines = %d, want 3:\n%s", len(lines), csvData)
	}
	wantHeader := "query_id,strategy,precision@5_value,precision@5_status,recall@5_value,recall@5_status,ndcg@5_value,ndcg@5_status,retrieved_doc_ids"
	if lines[0] != wantHeader {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "q1,bm25,0.4,pass,1,pass,") {
		t.Errorf("q1 row = %q", lines[1])
	}
	if lines[2] != `q2,bm25,0,fail,,,,,"[""d9"",""d8""]"` {
		t.Errorf("q2 row = %q", lines[2])
	}

	rows, err := Load(files.JSON)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rows) != 2 || rows[0].QueryID != "q1" || len(rows[1].RetrievedDocIDs) != 2 {
		t.Errorf("loaded rows = %+v", rows)
	}
	if rows[0].MetricResults[evaluation.MetricRecall].Threshold != evaluation.DefaultRecallThreshold {
		t.Errorf("threshold not persisted: %+v", rows[0].MetricResults)
	}
}

func TestWriter_OverwriteIsIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := NewWriter(dir, nil, nil)
	rep := Aggregate(testEngine(t), testGT, testOutputs())[1]

	first, err := w.Write(rep)
	if err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	a, _ := os.ReadFile(first.JSON)
	ac, _ := os.ReadFile(first.CSV)

	second, err := w.Write(rep)
	if err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	b, _ := os.ReadFile(second.JSON)
	bc, _ := os.ReadFile(second.CSV)

	if !bytes.Equal(a, b) || !bytes.Equal(ac, bc) {
		t.Error("writing the same report twice changed file content")
	}
}

func TestWriter_EmptyReport(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir, nil, nil)

	_, err := w.Write(Report{Strategy: "bm25"})
	if !errors.Is(err, ErrEmptyReport) {
		t.Fatalf("err = %v, want ErrEmptyReport", err)
	}
	if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
		t.Error("empty report must not create the output directory")
	}

	files, err := w.WriteAll([]Report{{Strategy: "tfidf"}})
	if err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("files = %v, want none", files)
	}
}

func TestWriter_IOErrorSurfaces(t *testing.T) {
	t.Parallel()
	// output path is an existing regular file
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	w := NewWriter(blocker, nil, nil)
	rep := Aggregate(testEngine(t), testGT, testOutputs())[0]
	if _, err := w.WriteAll([]Report{rep}); err == nil {
		t.Error("expected I/O error")
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected parse error")
	}
}
