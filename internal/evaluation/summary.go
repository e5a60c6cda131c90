// internal/evaluation/summary.go
package evaluation

import (
	"sort"
	"time"
)

// Summary holds the aggregate statistics derived from a ResultSet: success
// rate and mean overall similarity per backend, plus per-category means.
type Summary struct {
	EvaluationInfo      EvaluationInfo                `json:"evaluation_info"`
	SuccessRates        map[string]float64            `json:"success_rates"`
	SimilarityAverages  map[string]float64            `json:"similarity_averages"`
	CategoryPerformance map[string]map[string]float64 `json:"category_performance"`
}

// EvaluationInfo describes the scope and duration of the run.
type EvaluationInfo struct {
	TotalMethods    int      `json:"total_methods"`
	Categories      []string `json:"categories"`
	Backends        []string `json:"llms_evaluated"`
	DurationSeconds float64  `json:"evaluation_duration_seconds"`
}

// Summary derives the aggregate statistics for the orchestrator's current
// result set. Callers must not invoke it while backend goroutines are
// mid-flight; Run only summarizes between entries and at completion.
func (o *Orchestrator) Summary() Summary {
	var duration time.Duration
	if !o.startedAt.IsZero() {
		duration = time.Since(o.startedAt)
	}
	return Summarize(o.results, o.BackendNames(), duration)
}

// Summarize computes aggregate statistics for a result set over the given
// backends.
func Summarize(results ResultSet, backends []string, duration time.Duration) Summary {
	summary := Summary{
		EvaluationInfo: EvaluationInfo{
			TotalMethods:    len(results),
			Categories:      categories(results),
			Backends:        backends,
			DurationSeconds: duration.Seconds(),
		},
		SuccessRates:        make(map[string]float64, len(backends)),
		SimilarityAverages:  make(map[string]float64, len(backends)),
		CategoryPerformance: make(map[string]map[string]float64),
	}

	for _, name := range backends {
		successes := 0
		var sims []float64
		for _, eval := range results {
			resp, ok := eval.Responses[name]
			if !ok || !resp.Success {
				continue
			}
			successes++
			if score, ok := eval.Scores[name]; ok && score.Success {
				sims = append(sims, score.OverallSimilarity)
			}
		}
		summary.SuccessRates[name] = ratio(successes, len(results))
		summary.SimilarityAverages[name] = mean(sims)
	}

	for _, category := range summary.EvaluationInfo.Categories {
		perBackend := make(map[string]float64, len(backends))
		for _, name := range backends {
			var sims []float64
			for _, eval := range results {
				if eval.Category != category {
					continue
				}
				if score, ok := eval.Scores[name]; ok && score.Success {
					sims = append(sims, score.OverallSimilarity)
				}
			}
			perBackend[name] = mean(sims)
		}
		summary.CategoryPerformance[category] = perBackend
	}

	return summary
}

func categories(results ResultSet) []string {
	seen := make(map[string]bool)
	for _, eval := range results {
		seen[eval.Category] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ratio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
