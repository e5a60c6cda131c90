// internal/evaluation/orchestrator_test.go
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mwiater/krites/internal/appconfig"
	"github.com/mwiater/krites/internal/backend"
	"github.com/mwiater/krites/internal/groundtruth"
	"github.com/mwiater/krites/internal/parse"
	"github.com/mwiater/krites/internal/scoring"
)

const cannedResponse = `{"purpose_behavior": "Does the thing.", "return_values": {"type": "int", "description": "The result."}}`

// scriptedClient is a backend.Client stub: it either always fails with an
// UnreachableError or always returns the canned response, counting calls.
type scriptedClient struct {
	calls atomic.Int32
	fail  bool
	hook  func()
}

func (c *scriptedClient) Send(ctx context.Context, prompt string, b appconfig.Backend) (string, error) {
	c.calls.Add(1)
	if c.hook != nil {
		c.hook()
	}
	if c.fail {
		return "", &backend.UnreachableError{Backend: b.Name, Err: errors.New("connection refused")}
	}
	return cannedResponse, nil
}

// stubScorer returns a fixed successful score without any network traffic.
type stubScorer struct {
	fail bool
}

func (s stubScorer) Score(ctx context.Context, truth groundtruth.MethodRecord, response parse.ParsedResponse) (scoring.Score, error) {
	if s.fail {
		err := errors.New("oracle offline")
		return scoring.Failed(err), err
	}
	return scoring.Score{
		PurposeSimilarity:    0.9,
		ReturnTypeMatch:      scoring.TypeMatch(truth.ReturnValues.Type, response.ReturnValues.Type),
		ReturnDescSimilarity: 0.9,
		OverallSimilarity:    0.9,
		Success:              true,
	}, nil
}

// withStubClients replaces the client factory for the duration of a test.
func withStubClients(t *testing.T, clients map[string]backend.Client) {
	t.Helper()
	orig := newClient
	newClient = func(cfg *appconfig.Config, b appconfig.Backend) (backend.Client, error) {
		client, ok := clients[b.Name]
		if !ok {
			return nil, fmt.Errorf("no stub client for backend %q", b.Name)
		}
		return client, nil
	}
	t.Cleanup(func() { newClient = orig })
}

func testConfig(t *testing.T, backends ...appconfig.Backend) *appconfig.Config {
	t.Helper()
	return &appconfig.Config{
		Backends:           backends,
		GroundTruthFile:    "unused.json",
		OutputDir:          t.TempDir(),
		CheckpointInterval: 10,
		MaxAttempts:        3,
	}
}

func testCatalogue(count int) *groundtruth.Document {
	methods := make([]groundtruth.MethodRecord, 0, count)
	for i := 0; i < count; i++ {
		sig := fmt.Sprintf("int method%02d(String)", i)
		methods = append(methods, groundtruth.MethodRecord{
			Signature:       sig,
			PurposeBehavior: "Does the thing.",
			ReturnValues:    groundtruth.ReturnValues{Type: "int", Description: "The result."},
		})
	}
	return &groundtruth.Document{FrameworkMethods: map[string][]groundtruth.MethodRecord{"core": methods}}
}

// shrinkBackoff drops retry backoff into the microsecond range so failure
// paths run at test speed.
func shrinkBackoff(o *Orchestrator) {
	for i := range o.runners {
		o.runners[i].ctrl.BackoffUnit = time.Microsecond
	}
}

// TestRunEvaluatesAllBackends verifies one full pass: every method gets a
// response entry per backend, successful backends get scores, and an
// unreachable backend is recorded with attempt_count=maxAttempts and no
// score while the run continues to completion.
func TestRunEvaluatesAllBackends(t *testing.T) {
	good := &scriptedClient{}
	down := &scriptedClient{fail: true}
	withStubClients(t, map[string]backend.Client{"good": good, "down": down})

	cfg := testConfig(t,
		appconfig.Backend{Name: "good", Type: appconfig.BackendOllama, Model: "m", URL: "http://localhost:11434"},
		appconfig.Backend{Name: "down", Type: appconfig.BackendOllama, Model: "m", URL: "http://localhost:11435"},
	)
	orch, err := New(cfg, testCatalogue(2), stubScorer{})
	if err != nil {
		t.Fatal(err)
	}
	shrinkBackoff(orch)

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	results := orch.Results()
	if len(results) != 2 {
		t.Fatalf("expected 2 evaluated methods, got %d", len(results))
	}
	for sig, eval := range results {
		goodResp, ok := eval.Responses["good"]
		if !ok || !goodResp.Success {
			t.Fatalf("%s: expected successful response from good backend", sig)
		}
		if _, ok := eval.Scores["good"]; !ok {
			t.Fatalf("%s: expected score for good backend", sig)
		}

		downResp, ok := eval.Responses["down"]
		if !ok {
			t.Fatalf("%s: expected recorded response for down backend", sig)
		}
		if downResp.Success {
			t.Fatalf("%s: down backend must not succeed", sig)
		}
		if downResp.Attempts != 3 {
			t.Fatalf("%s: expected 3 attempts against down backend, got %d", sig, downResp.Attempts)
		}
		if _, ok := eval.Scores["down"]; ok {
			t.Fatalf("%s: down backend must not have a score", sig)
		}
	}

	// The down backend was retried maxAttempts times per method.
	if got := down.calls.Load(); got != 6 {
		t.Fatalf("expected 6 calls to down backend, got %d", got)
	}

	for _, name := range []string{ResultsFile, SummaryFile} {
		if _, err := os.Stat(filepath.Join(cfg.ResultsDir(), name)); err != nil {
			t.Fatalf("expected %s to be written: %v", name, err)
		}
	}
}

// TestCheckpointCadence verifies that with a checkpoint interval of 10,
// processing 25 catalogue entries produces exactly two intermediate
// checkpoint writes plus one final results write.
func TestCheckpointCadence(t *testing.T) {
	good := &scriptedClient{}
	withStubClients(t, map[string]backend.Client{"good": good})

	writes := map[string]int{}
	origWrite := writeResultsFn
	writeResultsFn = func(path string, v any) error {
		writes[filepath.Base(path)]++
		return origWrite(path, v)
	}
	t.Cleanup(func() { writeResultsFn = origWrite })

	cfg := testConfig(t, appconfig.Backend{Name: "good", Type: appconfig.BackendOllama, Model: "m", URL: "http://localhost:11434"})
	orch, err := New(cfg, testCatalogue(25), stubScorer{})
	if err != nil {
		t.Fatal(err)
	}

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if writes[ProgressFile] != 2 {
		t.Fatalf("expected exactly 2 intermediate checkpoints, got %d", writes[ProgressFile])
	}
	if writes[ResultsFile] != 1 {
		t.Fatalf("expected exactly 1 final results write, got %d", writes[ResultsFile])
	}
	if writes[SummaryFile] != 1 {
		t.Fatalf("expected exactly 1 summary write, got %d", writes[SummaryFile])
	}
}

// TestResumeSkipsCompleted verifies resume idempotence: re-running from a
// completed run's results skips every signature, issues no backend traffic,
// and produces an identical final result set.
func TestResumeSkipsCompleted(t *testing.T) {
	good := &scriptedClient{}
	withStubClients(t, map[string]backend.Client{"good": good})

	cfg := testConfig(t, appconfig.Backend{Name: "good", Type: appconfig.BackendOllama, Model: "m", URL: "http://localhost:11434"})
	catalogue := testCatalogue(5)

	orch, err := New(cfg, catalogue, stubScorer{})
	if err != nil {
		t.Fatal(err)
	}
	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	firstJSON, err := json.Marshal(orch.Results())
	if err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := good.calls.Load()

	resumed := *cfg
	resumed.ResumeFrom = filepath.Join(cfg.ResultsDir(), ResultsFile)

	var skipped int
	orch2, err := New(&resumed, catalogue, stubScorer{})
	if err != nil {
		t.Fatal(err)
	}
	orch2.OnProgress(func(ev ProgressEvent) {
		if ev.Skipped {
			skipped++
		}
	})
	if err := orch2.Run(context.Background()); err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}

	if good.calls.Load() != callsAfterFirst {
		t.Fatalf("resumed run issued backend traffic: %d calls before, %d after", callsAfterFirst, good.calls.Load())
	}
	if skipped != 5 {
		t.Fatalf("expected all 5 entries skipped, got %d", skipped)
	}

	secondJSON, err := json.Marshal(orch2.Results())
	if err != nil {
		t.Fatal(err)
	}
	if string(firstJSON) != string(secondJSON) {
		t.Fatal("resumed result set differs from the original")
	}
}

// TestResumeFromUnreadableFileFails verifies a named but unreadable resume
// file is a fatal setup error instead of silently starting fresh.
func TestResumeFromUnreadableFileFails(t *testing.T) {
	withStubClients(t, map[string]backend.Client{"good": &scriptedClient{}})

	cfg := testConfig(t, appconfig.Backend{Name: "good", Type: appconfig.BackendOllama, Model: "m", URL: "http://localhost:11434"})
	cfg.ResumeFrom = filepath.Join(t.TempDir(), "missing.json")

	if _, err := New(cfg, testCatalogue(1), stubScorer{}); err == nil {
		t.Fatal("expected New to fail for unreadable resume file")
	}
}

// TestCancelFlushesCheckpoint verifies that cancellation mid-run writes a
// checkpoint containing the completed work before Run returns.
func TestCancelFlushesCheckpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good := &scriptedClient{}
	good.hook = func() {
		if good.calls.Load() >= 2 {
			cancel()
		}
	}
	withStubClients(t, map[string]backend.Client{"good": good})

	cfg := testConfig(t, appconfig.Backend{Name: "good", Type: appconfig.BackendOllama, Model: "m", URL: "http://localhost:11434"})
	orch, err := New(cfg, testCatalogue(10), stubScorer{})
	if err != nil {
		t.Fatal(err)
	}

	err = orch.Run(ctx)
	if err == nil {
		t.Fatal("expected canceled run to return an error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	raw, readErr := os.ReadFile(filepath.Join(cfg.ResultsDir(), ProgressFile))
	if readErr != nil {
		t.Fatalf("expected flushed checkpoint: %v", readErr)
	}
	var flushed ResultSet
	if err := json.Unmarshal(raw, &flushed); err != nil {
		t.Fatalf("checkpoint is not valid JSON: %v", err)
	}
	if len(flushed) == 0 {
		t.Fatal("flushed checkpoint lost completed work")
	}
	if len(flushed) == 10 {
		t.Fatal("run did not stop early")
	}
}

// TestScorerFailureRecorded verifies a scorer failure is recorded as a
// zero-valued, success=false score instead of aborting the run.
func TestScorerFailureRecorded(t *testing.T) {
	good := &scriptedClient{}
	withStubClients(t, map[string]backend.Client{"good": good})

	cfg := testConfig(t, appconfig.Backend{Name: "good", Type: appconfig.BackendOllama, Model: "m", URL: "http://localhost:11434"})
	orch, err := New(cfg, testCatalogue(1), stubScorer{fail: true})
	if err != nil {
		t.Fatal(err)
	}

	if err := orch.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for sig, eval := range orch.Results() {
		score, ok := eval.Scores["good"]
		if !ok {
			t.Fatalf("%s: expected recorded score", sig)
		}
		if score.Success {
			t.Fatalf("%s: failed scoring must not report success", sig)
		}
		if score.OverallSimilarity != 0 {
			t.Fatalf("%s: failed scoring must be zero-valued", sig)
		}
		if score.Error == "" {
			t.Fatalf("%s: expected scorer failure reason", sig)
		}
	}
}

// TestPromptSubstitutesSignature verifies the fixed template carries the
// method signature and the required response field names.
func TestPromptSubstitutesSignature(t *testing.T) {
	prompt := Prompt("int parseIntInput(String)")
	if !strings.Contains(prompt, "int parseIntInput(String)") {
		t.Fatal("prompt does not contain the method signature")
	}
	for _, field := range []string{"purpose_behavior", "return_values", "\"type\"", "\"description\""} {
		if !strings.Contains(prompt, field) {
			t.Fatalf("prompt missing %s", field)
		}
	}
}
