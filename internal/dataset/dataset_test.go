package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCorpus(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "corpus.json", `[{"id":"d1","text":"galaxies"},{"id":"d2","text":"tides"}]`)
	docs, err := LoadCorpus(path)
	if err != nil {
		t.Fatalf("LoadCorpus: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "d1" || docs[1].Text != "tides" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestLoadCorpus_Errors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"duplicate id", `[{"id":"d1","text":"a"},{"id":"d1","text":"b"}]`, "duplicate document id"},
		{"empty id", `[{"id":" ","text":"a"}]`, "empty id"},
		{"malformed", `{"id":"d1"}`, "parse"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadCorpus(writeFile(t, "corpus.json", tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadCorpus_Missing(t *testing.T) {
	t.Parallel()
	if _, err := LoadCorpus(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing corpus")
	}
}

func TestLoadQueries(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "queries.json", `[{"query_id":"q1","text":"what is a galaxy"}]`)
	qs, err := LoadQueries(path)
	if err != nil {
		t.Fatalf("LoadQueries: %v", err)
	}
	if len(qs) != 1 || qs[0].ID != "q1" || qs[0].Text != "what is a galaxy" {
		t.Errorf("queries = %+v", qs)
	}

	dup := writeFile(t, "dup.json", `[{"query_id":"q1","text":"a"},{"query_id":"q1","text":"b"}]`)
	if _, err := LoadQueries(dup); err == nil {
		t.Error("expected error for duplicate query_id")
	}
}

func TestLoadGroundTruth(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "qrels.json", `{"q1":["d1","d3"],"q2":[]}`)
	gt, err := LoadGroundTruth(path)
	if err != nil {
		t.Fatalf("LoadGroundTruth: %v", err)
	}
	if got := gt.Relevant("q1"); len(got) != 2 {
		t.Errorf("Relevant(q1) = %v", got)
	}
	if got := gt.Relevant("q2"); len(got) != 0 {
		t.Errorf("Relevant(q2) = %v, want empty", got)
	}
}

func TestLoadGroundTruth_Absent(t *testing.T) {
	t.Parallel()
	gt, err := LoadGroundTruth(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil || gt != nil {
		t.Errorf("missing file = (%v, %v), want (nil, nil)", gt, err)
	}
	gt, err = LoadGroundTruth("")
	if err != nil || gt != nil {
		t.Errorf("empty path = (%v, %v), want (nil, nil)", gt, err)
	}
}
