package main

import (
	"fmt"
	"io"

	"github.com/nvandessel/gonogo/internal/config"
	"github.com/nvandessel/gonogo/internal/logging"
	"github.com/nvandessel/gonogo/internal/simulation"
	"github.com/nvandessel/gonogo/internal/store"
	"github.com/nvandessel/gonogo/internal/task"
	"github.com/spf13/cobra"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Let one agent play the knock go/no-go task",
		Long: `Play the full knock task (blocks MC, HC1, HC2, LC by default) with a
fresh agent. The agent is rewarded +1 for a correct trial and -1 otherwise.

Examples:
  gonogo task --seed 3
  gonogo task --per-stimulus            # Separate action values per image
  gonogo task --persist --json          # Store the trials as source=agent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			seed := int64Flag(cmd, "seed", cfg.Simulation.Seed)
			perStimulus := boolFlag(cmd, "per-stimulus", cfg.Simulation.PerStimulus)
			persist := boolFlag(cmd, "persist", cfg.Simulation.Persist)

			runner, cleanup, err := newTaskRunner(cmd, cfg, perStimulus, persist)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := runner.RunTask(cmd.Context(), simulation.SubjectAt(0, seed), cfg.Agent, cfg.Task.Design())
			if err != nil {
				return fmt.Errorf("task failed: %w", err)
			}
			sum := simulation.Summarize([]simulation.SessionResult{res})

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]any{
					"session_id":   res.SessionID,
					"user_id":      res.Subject.ID,
					"seed":         seed,
					"trials":       len(res.Steps),
					"accuracy":     res.Accuracy(),
					"final_score":  res.FinalScore,
					"final_values": res.FinalValues,
					"summary":      sum,
					"persisted":    persist,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session %s (%s, seed %d)\n", res.SessionID, res.Subject.ID, seed)
			fmt.Fprintf(out, "  Trials:      %d\n", len(res.Steps))
			fmt.Fprintf(out, "  Accuracy:    %.3f\n", res.Accuracy())
			fmt.Fprintf(out, "  Final score: %d\n", res.FinalScore)
			printSummary(out, sum)
			if persist {
				fmt.Fprintln(out, "\nTrials stored as source=agent.")
			}
			return nil
		},
	}

	cmd.Flags().Int64("seed", 1, "Random seed (default: simulation.seed)")
	cmd.Flags().Bool("per-stimulus", false, "Learn separate action values per stimulus")
	cmd.Flags().Bool("persist", false, "Store the session's trials")

	return cmd
}

// newTaskRunner builds a runner with choice tracing and, when persist is
// set, an open store. cleanup releases both.
func newTaskRunner(cmd *cobra.Command, cfg *config.GonogoConfig, perStimulus, persist bool) (*simulation.Runner, func(), error) {
	dir, err := store.ResolveDataDir(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	choices := logging.NewChoiceLogger(dir, cfg.Logging.Level)

	opts := []simulation.Option{
		simulation.WithLogger(newLogger(cmd, cfg)),
		simulation.WithChoiceLogger(choices),
		simulation.WithPerStimulusValues(perStimulus),
	}
	var ts *store.SQLiteTrialStore
	if persist {
		ts, err = openStore(cfg)
		if err != nil {
			choices.Close()
			return nil, nil, err
		}
		opts = append(opts, simulation.WithStore(ts))
	}

	cleanup := func() {
		choices.Close()
		if ts != nil {
			ts.Close()
		}
	}
	return simulation.NewRunner(opts...), cleanup, nil
}

// printSummary writes go rates per stimulus and accuracy per block.
func printSummary(w io.Writer, sum simulation.BatchSummary) {
	fmt.Fprintln(w, "\nGo rate by stimulus:")
	for _, s := range task.Stimuli {
		if rate, ok := sum.GoRate[s]; ok {
			fmt.Fprintf(w, "  %-6s %.3f\n", s, rate)
		}
	}
	fmt.Fprintln(w, "\nAccuracy by block:")
	for _, b := range sum.Blocks() {
		fmt.Fprintf(w, "  %-6s %.3f\n", b, sum.BlockAcc[b])
	}
}
