package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/54b3r/ragbench-go/internal/evaluation"
)

// fileSuffix is appended to the strategy name for both report files.
const fileSuffix = "_eval_report"

// Files are the paths written for one strategy.
type Files struct {
	CSV  string
	JSON string
}

// Writer persists reports under a single output directory. Existing files
// for a strategy are overwritten.
type Writer struct {
	// dir is the output directory, created on first write.
	dir string
	// log receives one record per written or skipped report.
	log *slog.Logger
	// onWrite is invoked after each report pair is written; may be nil.
	onWrite func(strategy string)
}

// NewWriter returns a Writer targeting dir. onWrite may be nil.
func NewWriter(dir string, log *slog.Logger, onWrite func(strategy string)) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{dir: dir, log: log, onWrite: onWrite}
}

// FileBase returns the file name stem for strategy. Characters outside
// [A-Za-z0-9._+-] become underscores.
func FileBase(strategy string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '+', r == '-':
			return r
		default:
			return '_'
		}
	}, strategy)
	return clean + fileSuffix
}

// Write persists rep as <strategy>_eval_report.csv and .json. A report with
// no rows returns ErrEmptyReport and touches nothing.
func (w *Writer) Write(rep Report) (Files, error) {
	if len(rep.Rows) == 0 {
		return Files{}, fmt.Errorf("%w: strategy %q", ErrEmptyReport, rep.Strategy)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("report: create output dir: %w", err)
	}

	base := filepath.Join(w.dir, FileBase(rep.Strategy))
	files := Files{CSV: base + ".csv", JSON: base + ".json"}

	csvData, err := encodeCSV(rep.Rows)
	if err != nil {
		return Files{}, fmt.Errorf("report: encode csv for %q: %w", rep.Strategy, err)
	}
	if err := os.WriteFile(files.CSV, csvData, 0o644); err != nil {
		return Files{}, fmt.Errorf("report: write csv: %w", err)
	}

	jsonData, err := json.MarshalIndent(rep.Rows, "", "  ")
	if err != nil {
		return Files{}, fmt.Errorf("report: encode json for %q: %w", rep.Strategy, err)
	}
	if err := os.WriteFile(files.JSON, append(jsonData, '\n'), 0o644); err != nil {
		return Files{}, fmt.Errorf("report: write json: %w", err)
	}

	w.log.Info("report written",
		slog.String("strategy", rep.Strategy),
		slog.Int("rows", len(rep.Rows)),
		slog.String("csv", files.CSV),
		slog.String("json", files.JSON),
	)
	if w.onWrite != nil {
		w.onWrite(rep.Strategy)
	}
	return files, nil
}

// WriteAll writes every report. Empty reports are logged and skipped; the
// first I/O error aborts and is returned.
func (w *Writer) WriteAll(reports []Report) ([]Files, error) {
	written := make([]Files, 0, len(reports))
	for _, rep := range reports {
		files, err := w.Write(rep)
		if errors.Is(err, ErrEmptyReport) {
			w.log.Info("skipping empty report", slog.String("strategy", rep.Strategy))
			continue
		}
		if err != nil {
			return written, err
		}
		written = append(written, files)
	}
	return written, nil
}

// CSVHeader returns the report column names: query_id, strategy, a
// <metric>_value and <metric>_status pair per metric, retrieved_doc_ids.
func CSVHeader() []string {
	header := []string{"query_id", "strategy"}
	for _, m := range evaluation.MetricNames() {
		header = append(header, m+"_value", m+"_status")
	}
	return append(header, "retrieved_doc_ids")
}

// encodeCSV renders rows with CSVHeader columns. Absent metrics leave empty
// cells; retrieved_doc_ids is a JSON array.
func encodeCSV(rows []EvaluationRow) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(CSVHeader()); err != nil {
		return nil, err
	}
	for _, row := range rows {
		rec := []string{row.QueryID, row.Strategy}
		for _, m := range evaluation.MetricNames() {
			res, ok := row.MetricResults[m]
			if !ok {
				rec = append(rec, "", "")
				continue
			}
			rec = append(rec, strconv.FormatFloat(res.Value, 'f', -1, 64), string(res.Status))
		}
		ids, err := json.Marshal(row.RetrievedDocIDs)
		if err != nil {
			return nil, err
		}
		rec = append(rec, string(ids))
		if err := cw.Write(rec); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	return buf.Bytes(), cw.Error()
}

// Load reads a JSON report written by Writer.
func Load(path string) ([]EvaluationRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read %s: %w", path, err)
	}
	var rows []EvaluationRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("report: parse %s: %w", path, err)
	}
	return rows, nil
}
