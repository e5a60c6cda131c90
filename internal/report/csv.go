// internal/report/csv.go
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/mwiater/krites/internal/evaluation"
)

// ExportCSV writes the flat result table to path: one row per method, the
// ground truth columns first, then response and score columns per backend.
func ExportCSV(path string, results evaluation.ResultSet, backends []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv export: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"category", "method_signature", "gt_purpose", "gt_return_type", "gt_return_description"}
	for _, name := range backends {
		header = append(header,
			name+"_purpose",
			name+"_return_type",
			name+"_return_description",
			name+"_purpose_similarity",
			name+"_return_type_match",
			name+"_return_desc_similarity",
			name+"_overall_similarity",
		)
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, sig := range results.Signatures() {
		eval := results[sig]
		row := []string{
			eval.Category,
			sig,
			eval.GroundTruth.PurposeBehavior,
			eval.GroundTruth.ReturnValues.Type,
			eval.GroundTruth.ReturnValues.Description,
		}
		for _, name := range backends {
			row = append(row, backendColumns(eval, name)...)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", sig, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv export: %w", err)
	}
	return nil
}

// backendColumns renders one backend's response and score cells for a row.
// Failed evaluations get explicit ERROR markers so the table stays rectangular.
func backendColumns(eval *evaluation.MethodEvaluation, name string) []string {
	resp, ok := eval.Responses[name]
	if !ok || !resp.Success || resp.Parsed == nil {
		errMsg := "EVALUATION_FAILED"
		if ok && resp.Error != "" {
			errMsg = resp.Error
		}
		return []string{"ERROR: " + errMsg, "ERROR", "ERROR", "0", "false", "0", "0"}
	}

	cols := []string{
		resp.Parsed.PurposeBehavior,
		resp.Parsed.ReturnValues.Type,
		resp.Parsed.ReturnValues.Description,
	}

	score, ok := eval.Scores[name]
	if !ok || !score.Success {
		return append(cols, "0", "false", "0", "0")
	}
	return append(cols,
		formatFloat(score.PurposeSimilarity),
		strconv.FormatBool(score.ReturnTypeMatch),
		formatFloat(score.ReturnDescSimilarity),
		formatFloat(score.OverallSimilarity),
	)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
