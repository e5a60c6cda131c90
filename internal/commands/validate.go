// internal/commands/validate.go
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwiater/krites/internal/evaluation"
	"github.com/mwiater/krites/internal/groundtruth"
	"github.com/mwiater/krites/internal/scoring"
)

// validateCmd checks the full setup without sending any network traffic:
// configuration, credentials, ground truth, scorer settings, and the
// resume file when one is named.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config, credentials, and ground truth without running",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		catalogue, err := groundtruth.Load(cfg.GroundTruthFile)
		if err != nil {
			return err
		}

		if _, err := scoring.NewEmbeddingSimilarity(cfg); err != nil {
			return err
		}

		resumed := 0
		if cfg.ResumeFrom != "" {
			results, err := evaluation.LoadResults(cfg.ResumeFrom)
			if err != nil {
				return err
			}
			resumed = len(results)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Setup is valid.\n")
		fmt.Fprintf(out, "  backends: %d\n", len(cfg.Backends))
		fmt.Fprintf(out, "  methods: %d across %d categories\n", catalogue.TotalMethods(), len(catalogue.Categories()))
		if cfg.ResumeFrom != "" {
			fmt.Fprintf(out, "  resumable: %d methods already evaluated\n", resumed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
