// internal/report/console.go

// Package report renders the final result set for humans: a colored
// end-of-run console summary and a flat CSV export of the result table.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/mwiater/krites/internal/evaluation"
)

// Console writes the end-of-run summary block to w.
func Console(w io.Writer, summary evaluation.Summary) {
	header := color.New(color.FgCyan, color.Bold)
	label := color.New(color.Bold)
	good := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w)
	header.Fprintln(w, rule)
	header.Fprintln(w, "EVALUATION SUMMARY")
	header.Fprintln(w, rule)

	info := summary.EvaluationInfo
	fmt.Fprintf(w, "Total Methods Evaluated: %d\n", info.TotalMethods)
	fmt.Fprintf(w, "Categories: %d\n", len(info.Categories))
	fmt.Fprintf(w, "Backends: %d\n", len(info.Backends))
	if info.DurationSeconds > 0 {
		fmt.Fprintf(w, "Duration: %.1f minutes\n", info.DurationSeconds/60)
	}

	label.Fprintln(w, "\nSUCCESS RATES:")
	for _, name := range info.Backends {
		rate := summary.SuccessRates[name]
		line := fmt.Sprintf("  %s: %.3f", name, rate)
		if rate >= 0.5 {
			good.Fprintln(w, line)
		} else {
			bad.Fprintln(w, line)
		}
	}

	label.Fprintln(w, "\nAVERAGE SIMILARITY SCORES:")
	for _, name := range info.Backends {
		fmt.Fprintf(w, "  %s: %.3f\n", name, summary.SimilarityAverages[name])
	}

	header.Fprintln(w, rule)
}
