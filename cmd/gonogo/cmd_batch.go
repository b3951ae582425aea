package main

import (
	"fmt"

	"github.com/nvandessel/gonogo/internal/simulation"
	"github.com/spf13/cobra"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run many simulated subjects in parallel",
		Long: `Run independent subjects through the knock task. Subject i is seeded
with seed+i and gets its own agent; results are pooled.

Examples:
  gonogo batch --subjects 20
  gonogo batch --subjects 50 --workers 4 --persist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			bc := simulation.BatchConfig{
				Subjects: intFlag(cmd, "subjects", cfg.Simulation.Subjects),
				Seed:     int64Flag(cmd, "seed", cfg.Simulation.Seed),
				Workers:  intFlag(cmd, "workers", cfg.Simulation.Workers),
				Agent:    cfg.Agent,
				Design:   cfg.Task.Design(),
			}
			perStimulus := boolFlag(cmd, "per-stimulus", cfg.Simulation.PerStimulus)
			persist := boolFlag(cmd, "persist", cfg.Simulation.Persist)

			runner, cleanup, err := newTaskRunner(cmd, cfg, perStimulus, persist)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			results, err := runner.RunBatch(ctx, bc)
			if err != nil {
				return fmt.Errorf("batch failed: %w", err)
			}
			sum := simulation.Summarize(results)

			if jsonOutput(cmd) {
				type subjectRow struct {
					SessionID  string  `json:"session_id"`
					UserID     string  `json:"user_id"`
					Seed       int64   `json:"seed"`
					Accuracy   float64 `json:"accuracy"`
					FinalScore int     `json:"final_score"`
				}
				rows := make([]subjectRow, 0, len(results))
				for _, r := range results {
					rows = append(rows, subjectRow{
						SessionID:  r.SessionID,
						UserID:     r.Subject.ID,
						Seed:       r.Subject.Seed,
						Accuracy:   r.Accuracy(),
						FinalScore: r.FinalScore,
					})
				}
				return writeJSON(cmd, map[string]any{
					"summary":   sum,
					"subjects":  rows,
					"persisted": persist,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d subjects, %d trials\n", sum.Subjects, sum.Trials)
			fmt.Fprintf(out, "  Mean accuracy: %.3f\n", sum.MeanAccuracy)
			fmt.Fprintf(out, "  Mean score:    %.1f\n", sum.MeanScore)
			printSummary(out, sum)
			return nil
		},
	}

	cmd.Flags().Int("subjects", 1, "Number of subjects (default: simulation.subjects)")
	cmd.Flags().Int64("seed", 1, "Base seed (default: simulation.seed)")
	cmd.Flags().Int("workers", 0, "Concurrent subjects, 0 = one per subject")
	cmd.Flags().Bool("per-stimulus", false, "Learn separate action values per stimulus")
	cmd.Flags().Bool("persist", false, "Store every session's trials")

	return cmd
}
