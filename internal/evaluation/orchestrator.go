// internal/evaluation/orchestrator.go

// Package evaluation drives the full work list of (method, backend) pairs:
// it owns the in-memory result set, checkpoints it periodically, and can
// resume from a prior checkpoint so a crash or interruption loses no
// completed work.
package evaluation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mwiater/krites/internal/appconfig"
	"github.com/mwiater/krites/internal/backend"
	"github.com/mwiater/krites/internal/groundtruth"
	"github.com/mwiater/krites/internal/logging"
	"github.com/mwiater/krites/internal/retry"
	"github.com/mwiater/krites/internal/scoring"
)

var (
	newClient      = backend.NewClient
	writeResultsFn = writeJSON
)

// ProgressEvent reports loop progress to an optional observer, e.g. the
// terminal progress view.
type ProgressEvent struct {
	Index     int
	Total     int
	Signature string
	Skipped   bool
}

// runner pairs a backend entry with the retry controller that drives it.
// One runner means at most one in-flight request per backend, which keeps
// the per-backend rate-limit delay collective rather than per-request.
type runner struct {
	backend appconfig.Backend
	ctrl    *retry.Controller
}

// Orchestrator is the top-level control loop.
type Orchestrator struct {
	cfg        *appconfig.Config
	catalogue  *groundtruth.Document
	runners    []runner
	scorer     scoring.Scorer
	onProgress func(ProgressEvent)
	startedAt  time.Time

	// mu serializes writes to results: backend evaluations for the same
	// method complete concurrently, and checkpoints need a consistent view.
	mu      sync.Mutex
	results ResultSet
}

// New builds an Orchestrator: one client per configured backend, selected
// by kind at construction time, plus the resumed ResultSet when the config
// names a prior results file.
func New(cfg *appconfig.Config, catalogue *groundtruth.Document, scorer scoring.Scorer) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to orchestrator")
	}
	if catalogue == nil {
		return nil, fmt.Errorf("nil catalogue provided to orchestrator")
	}
	if scorer == nil {
		return nil, fmt.Errorf("nil scorer provided to orchestrator")
	}

	runners := make([]runner, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		client, err := newClient(cfg, b)
		if err != nil {
			return nil, err
		}
		runners = append(runners, runner{backend: b, ctrl: retry.NewController(client)})
	}

	results := make(ResultSet)
	if cfg.ResumeFrom != "" {
		loaded, err := LoadResults(cfg.ResumeFrom)
		if err != nil {
			return nil, fmt.Errorf("resume from %q: %w", cfg.ResumeFrom, err)
		}
		results = loaded
		logging.LogEvent("Resumed %d previously evaluated methods from %s", len(results), cfg.ResumeFrom)
	}

	return &Orchestrator{
		cfg:       cfg,
		catalogue: catalogue,
		runners:   runners,
		scorer:    scorer,
		results:   results,
	}, nil
}

// OnProgress registers an observer invoked after each catalogue entry.
func (o *Orchestrator) OnProgress(fn func(ProgressEvent)) {
	o.onProgress = fn
}

// Results returns the orchestrator's result set.
func (o *Orchestrator) Results() ResultSet {
	return o.results
}

// Run processes every catalogue entry against every configured backend.
// Entries already present in the result set are skipped wholesale. After
// every checkpoint interval of catalogue positions the full result set is
// written out, bounding re-work lost to a crash. Cancellation flushes a
// final checkpoint before returning, so completed work survives an
// interrupt.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startedAt = time.Now()

	if err := os.MkdirAll(o.cfg.ResultsDir(), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries := o.catalogue.Methods()
	total := len(entries)
	interval := o.cfg.CheckpointEvery()
	logging.LogEvent("Starting evaluation: %d methods x %d backends = %d evaluations",
		total, len(o.runners), total*len(o.runners))

	for idx, entry := range entries {
		if ctx.Err() != nil {
			return o.flushOnCancel(ctx)
		}

		if _, done := o.results[entry.Signature]; done {
			logging.LogEvent("[%d/%d] Skipping %s (already evaluated)", idx+1, total, entry.Signature)
			o.emit(ProgressEvent{Index: idx + 1, Total: total, Signature: entry.Signature, Skipped: true})
			continue
		}

		logging.LogEvent("[%d/%d] Evaluating: %s", idx+1, total, entry.Signature)
		eval := &MethodEvaluation{
			Category:    entry.Category,
			GroundTruth: entry.Record,
			Responses:   make(map[string]retry.AttemptResult, len(o.runners)),
			Scores:      make(map[string]scoring.Score, len(o.runners)),
			EvaluatedAt: time.Now(),
		}
		o.mu.Lock()
		o.results[entry.Signature] = eval
		o.mu.Unlock()

		var wg sync.WaitGroup
		for _, r := range o.runners {
			wg.Add(1)
			go func(r runner) {
				defer wg.Done()
				o.evaluateBackend(ctx, r, entry, eval)
			}(r)
		}
		wg.Wait()

		if (idx+1)%interval == 0 {
			if err := o.checkpoint(); err != nil {
				return err
			}
			logging.LogEvent("Progress saved: %d/%d methods", idx+1, total)
		}
		o.emit(ProgressEvent{Index: idx + 1, Total: total, Signature: entry.Signature})
	}

	if ctx.Err() != nil {
		return o.flushOnCancel(ctx)
	}
	return o.writeFinal()
}

// evaluateBackend runs one (method, backend) evaluation: retrying request,
// result recording, and scoring. Nothing here aborts the run; every failure
// mode is recorded per backend.
func (o *Orchestrator) evaluateBackend(ctx context.Context, r runner, entry groundtruth.Entry, eval *MethodEvaluation) {
	res := r.ctrl.Execute(ctx, Prompt(entry.Signature), entry.Signature, r.backend, o.cfg.Attempts())

	o.mu.Lock()
	eval.Responses[r.backend.Name] = res
	o.mu.Unlock()

	if !res.Success || res.Parsed == nil {
		logging.LogEvent("  %s failed on %s: %s", r.backend.Name, entry.Signature, res.Error)
		return
	}

	score, err := o.scorer.Score(ctx, entry.Record, *res.Parsed)
	if err != nil {
		logging.LogEvent("  scoring failed for %s on %s: %v", r.backend.Name, entry.Signature, err)
		score = scoring.Failed(err)
	}

	o.mu.Lock()
	eval.Scores[r.backend.Name] = score
	o.mu.Unlock()

	logging.LogEvent("  %s overall similarity on %s: %.3f", r.backend.Name, entry.Signature, score.OverallSimilarity)
}

// checkpoint writes the full result set to the progress backup file under
// the write lock, so the snapshot is consistent even if callers race.
func (o *Orchestrator) checkpoint() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return writeResultsFn(filepath.Join(o.cfg.ResultsDir(), ProgressFile), o.results)
}

// flushOnCancel checkpoints whatever completed before the interrupt and
// reports the cancellation cause.
func (o *Orchestrator) flushOnCancel(ctx context.Context) error {
	logging.LogEvent("Run interrupted; flushing checkpoint with %d methods", len(o.results))
	if err := o.checkpoint(); err != nil {
		return fmt.Errorf("flush checkpoint on interrupt: %w", err)
	}
	return context.Cause(ctx)
}

// writeFinal persists the final result set and the derived summary.
func (o *Orchestrator) writeFinal() error {
	dir := o.cfg.ResultsDir()

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := writeResultsFn(filepath.Join(dir, ResultsFile), o.results); err != nil {
		return err
	}
	if err := writeResultsFn(filepath.Join(dir, SummaryFile), o.Summary()); err != nil {
		return err
	}
	logging.LogEvent("Final results saved to %s", dir)
	return nil
}

// BackendNames returns the configured backend names in configuration order.
func (o *Orchestrator) BackendNames() []string {
	names := make([]string, 0, len(o.runners))
	for _, r := range o.runners {
		names = append(names, r.backend.Name)
	}
	return names
}

func (o *Orchestrator) emit(ev ProgressEvent) {
	if o.onProgress != nil {
		o.onProgress(ev)
	}
}
