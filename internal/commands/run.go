// internal/commands/run.go
package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mwiater/krites/internal/appconfig"
	"github.com/mwiater/krites/internal/evaluation"
	"github.com/mwiater/krites/internal/groundtruth"
	"github.com/mwiater/krites/internal/logging"
	"github.com/mwiater/krites/internal/report"
	"github.com/mwiater/krites/internal/scoring"
	"github.com/mwiater/krites/internal/tui"
)

// csvExportFile is the flat result table written next to the JSON results.
const csvExportFile = "evaluation_results.csv"

// runCmd executes the full evaluation across every configured backend,
// checkpointing as it goes. SIGINT and SIGTERM trigger an orderly
// checkpoint-then-exit rather than losing completed work.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full evaluation across all configured backends",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		catalogue, err := groundtruth.Load(cfg.GroundTruthFile)
		if err != nil {
			return err
		}

		similarity, err := scoring.NewEmbeddingSimilarity(cfg)
		if err != nil {
			return err
		}

		orch, err := evaluation.New(cfg, catalogue, scoring.NewMethodScorer(similarity))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Progress {
			return runWithProgress(ctx, cfg, orch, catalogue.TotalMethods())
		}

		if err := orch.Run(ctx); err != nil {
			return err
		}
		finishRun(cfg, orch)
		return nil
	},
}

// runWithProgress drives the run behind the terminal progress view. The
// orchestrator runs in a worker goroutine and feeds progress events to the
// view; a user interrupt cancels the run context and the view stays up until
// the checkpoint flush confirms via DoneMsg.
func runWithProgress(ctx context.Context, cfg *appconfig.Config, orch *evaluation.Orchestrator, total int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(tui.NewModel(total, cancel))
	orch.OnProgress(func(ev evaluation.ProgressEvent) {
		program.Send(tui.ProgressMsg(ev))
	})

	runErr := make(chan error, 1)
	go func() {
		err := orch.Run(ctx)
		runErr <- err
		program.Send(tui.DoneMsg{Err: err})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-runErr
		return err
	}

	if err := <-runErr; err != nil {
		return err
	}
	finishRun(cfg, orch)
	return nil
}

// finishRun renders the console summary and writes the CSV export after a
// completed (not canceled) run. Export failures are logged, not fatal: the
// JSON results are already on disk.
func finishRun(cfg *appconfig.Config, orch *evaluation.Orchestrator) {
	summary := orch.Summary()
	report.Console(os.Stdout, summary)

	csvPath := filepath.Join(cfg.ResultsDir(), csvExportFile)
	if err := report.ExportCSV(csvPath, orch.Results(), orch.BackendNames()); err != nil {
		logging.LogEvent("CSV export failed: %v", err)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
