package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/nvandessel/gonogo/internal/constants"
	"github.com/nvandessel/gonogo/internal/logging"
	"github.com/nvandessel/gonogo/internal/simulation"
	"github.com/nvandessel/gonogo/internal/store"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive one agent through a fixed reward sequence",
		Long: `Create an agent, and on every trial let it choose an action and then
update it with the next reward in the sequence, whatever it chose.
Prints the action, p(go), prediction error and action values per trial.

Examples:
  gonogo run                               # Default ten-trial sequence
  gonogo run --rewards 1,1,1,-1 --seed 7
  gonogo run --log-level trace             # Also trace to ~/.gonogo/choices.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			seed := int64Flag(cmd, "seed", cfg.Simulation.Seed)

			rewards := constants.DefaultRewardSequence
			if s, _ := cmd.Flags().GetString("rewards"); s != "" {
				rewards, err = parseRewards(s)
				if err != nil {
					return err
				}
			}

			dir, err := store.ResolveDataDir(cfg.DataDir)
			if err != nil {
				return fmt.Errorf("failed to resolve data directory: %w", err)
			}
			choices := logging.NewChoiceLogger(dir, cfg.Logging.Level)
			defer choices.Close()

			runner := simulation.NewRunner(
				simulation.WithLogger(newLogger(cmd, cfg)),
				simulation.WithChoiceLogger(choices),
			)
			res, err := runner.RunRewards(cmd.Context(), simulation.SubjectAt(0, seed), cfg.Agent, rewards)
			if err != nil {
				return fmt.Errorf("run failed: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, res)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TRIAL\tACTION\tP(GO)\tREWARD\tPE\tQ(GO)\tQ(NO-GO)")
			for _, s := range res.Steps {
				fmt.Fprintf(w, "%d\t%s\t%.3f\t%+.0f\t%+.3f\t%.3f\t%.3f\n",
					s.Trial, s.Action, s.Probs.Go(), s.Reward, s.Update.PredictionError, s.Values[0], s.Values[1])
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nFinal values: go=%.3f no-go=%.3f\n", res.FinalValues[0], res.FinalValues[1])
			return nil
		},
	}

	cmd.Flags().Int64("seed", 1, "Random seed (default: simulation.seed)")
	cmd.Flags().String("rewards", "", "Comma-separated reward sequence (default: 1,-1,0,1,-1,1,0,-1,1,-1)")

	return cmd
}

// parseRewards parses a comma-separated list of finite rewards.
func parseRewards(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid reward %q: %w", p, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("reward sequence is empty")
	}
	return out, nil
}
