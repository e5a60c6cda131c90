// internal/report/report_test.go
package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mwiater/krites/internal/evaluation"
	"github.com/mwiater/krites/internal/groundtruth"
	"github.com/mwiater/krites/internal/parse"
	"github.com/mwiater/krites/internal/retry"
	"github.com/mwiater/krites/internal/scoring"
)

func reportFixture() evaluation.ResultSet {
	parsed := &parse.ParsedResponse{
		PurposeBehavior: "Returns the device identifier.",
		ReturnValues:    parse.ReturnValues{Type: "String", Description: "The IMEI."},
	}
	return evaluation.ResultSet{
		"String getDeviceId()": {
			Category: "telephony",
			GroundTruth: groundtruth.MethodRecord{
				Signature:       "String getDeviceId()",
				PurposeBehavior: "Returns the unique device identifier.",
				ReturnValues:    groundtruth.ReturnValues{Type: "String", Description: "The device IMEI or MEID."},
			},
			Responses: map[string]retry.AttemptResult{
				"gpt":      {Backend: "gpt", Success: true, Parsed: parsed, Attempts: 1},
				"deepseek": {Backend: "deepseek", Success: false, Error: "connection refused", Attempts: 3},
			},
			Scores: map[string]scoring.Score{
				"gpt": {
					PurposeSimilarity:    0.8512,
					ReturnTypeMatch:      true,
					ReturnDescSimilarity: 0.75,
					OverallSimilarity:    0.8006,
					Success:              true,
				},
			},
			EvaluatedAt: time.Now(),
		},
	}
}

// TestExportCSV verifies the table shape: ground truth columns, then seven
// columns per backend, with ERROR markers for failed evaluations so every
// row stays rectangular.
func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evaluation_results.csv")
	backends := []string{"gpt", "deepseek"}

	if err := ExportCSV(path, reportFixture(), backends); err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		t.Fatalf("export is not valid CSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d rows", len(rows))
	}

	header := rows[0]
	wantCols := 5 + 7*len(backends)
	if len(header) != wantCols {
		t.Fatalf("expected %d header columns, got %d", wantCols, len(header))
	}
	if header[0] != "category" || header[1] != "method_signature" {
		t.Fatalf("unexpected leading header: %v", header[:2])
	}
	if header[5] != "gpt_purpose" || header[11] != "gpt_overall_similarity" {
		t.Fatalf("unexpected gpt columns: %v", header[5:12])
	}

	row := rows[1]
	if row[0] != "telephony" || row[1] != "String getDeviceId()" {
		t.Fatalf("unexpected row identity: %v", row[:2])
	}
	if row[5] != "Returns the device identifier." {
		t.Fatalf("unexpected gpt purpose cell: %q", row[5])
	}
	if row[8] != "0.8512" || row[9] != "true" || row[11] != "0.8006" {
		t.Fatalf("unexpected gpt score cells: %v", row[8:12])
	}

	deepseek := row[12:19]
	if deepseek[0] != "ERROR: connection refused" {
		t.Fatalf("unexpected failure marker: %q", deepseek[0])
	}
	if deepseek[1] != "ERROR" || deepseek[4] != "false" || deepseek[6] != "0" {
		t.Fatalf("unexpected failure cells: %v", deepseek)
	}
}

// TestConsole verifies the summary block names every backend with its
// success rate and similarity average.
func TestConsole(t *testing.T) {
	summary := evaluation.Summarize(reportFixture(), []string{"gpt", "deepseek"}, 2*time.Minute)

	var buf bytes.Buffer
	Console(&buf, summary)
	out := buf.String()

	for _, want := range []string{
		"EVALUATION SUMMARY",
		"Total Methods Evaluated: 1",
		"gpt: 1.000",
		"deepseek: 0.000",
		"Duration: 2.0 minutes",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary output missing %q:\n%s", want, out)
		}
	}
}
