// internal/evaluation/results.go
package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mwiater/krites/internal/groundtruth"
	"github.com/mwiater/krites/internal/retry"
	"github.com/mwiater/krites/internal/scoring"
)

// Output file names inside the configured results directory.
const (
	ProgressFile = "progress_backup.json"
	ResultsFile  = "full_results.json"
	SummaryFile  = "summary_statistics.json"
)

// MethodEvaluation is the unit of checkpointing: everything recorded for one
// method signature. Created the first time a method is processed, mutated in
// place as each backend completes, never deleted during a run.
type MethodEvaluation struct {
	Category    string                         `json:"category"`
	GroundTruth groundtruth.MethodRecord       `json:"ground_truth"`
	Responses   map[string]retry.AttemptResult `json:"llm_responses"`
	Scores      map[string]scoring.Score       `json:"similarities"`
	EvaluatedAt time.Time                      `json:"evaluation_timestamp"`
}

// ResultSet maps method signature to its evaluation. A signature present as
// a key is treated as fully attempted for all backends: resume skips it
// wholesale even if some of its backends previously failed.
type ResultSet map[string]*MethodEvaluation

// Signatures returns the result keys in sorted order.
func (r ResultSet) Signatures() []string {
	sigs := make([]string, 0, len(r))
	for sig := range r {
		sigs = append(sigs, sig)
	}
	sort.Strings(sigs)
	return sigs
}

// LoadResults reads a previously checkpointed ResultSet to seed a resumed
// run. An unreadable or malformed file is an error: silently starting fresh
// would redo the whole batch and overwrite the checkpoint being resumed.
func LoadResults(path string) (ResultSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var results ResultSet
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("parse results file %q: %w", path, err)
	}
	return results, nil
}

// writeJSON serializes v to path atomically: a checkpoint interrupted
// mid-write must never clobber the previous good checkpoint.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
