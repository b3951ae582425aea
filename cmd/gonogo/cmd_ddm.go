package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nvandessel/gonogo/internal/config"
	"github.com/nvandessel/gonogo/internal/ddm"
	"github.com/nvandessel/gonogo/internal/export"
	"github.com/spf13/cobra"
)

func newDDMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddm",
		Short: "Simulate and summarize drift-diffusion datasets",
		Long: `Generate stimulus-coded drift-diffusion trial tables and compute the
statistics behind the data/model comparison plots: P(correct), P(response),
RT quantiles and conditional accuracy per RT-quantile bin.

Examples:
  gonogo ddm simulate --output ddm.arrow
  gonogo ddm simulate --subjects 2 --trials 2000 --go-nogo
  gonogo ddm summary ddm.arrow --histogram 40`,
	}

	cmd.AddCommand(
		newDDMSimulateCmd(),
		newDDMSummaryCmd(),
	)
	return cmd
}

type conditionReport struct {
	Condition int            `json:"condition"`
	Summary   ddm.Summary    `json:"summary"`
	Histogram *ddm.Histogram `json:"histogram,omitempty"`
}

func newDDMSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate a multi-subject DDM dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			simCfg := cfg.DDM.SimulateConfig()
			simCfg.Subjects = intFlag(cmd, "subjects", simCfg.Subjects)
			simCfg.TrialsPerLevel = intFlag(cmd, "trials", simCfg.TrialsPerLevel)
			simCfg.Workers = intFlag(cmd, "workers", simCfg.Workers)
			simCfg.GoNoGo = boolFlag(cmd, "go-nogo", simCfg.GoNoGo)
			seed := int64Flag(cmd, "seed", cfg.DDM.Seed)

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			trials, err := ddm.Simulate(ctx, ddm.SeededEuler(seed), simCfg)
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}

			output, _ := cmd.Flags().GetString("output")
			if output != "" {
				if err := export.WriteDDMFile(output, trials); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
			}

			reports, err := summarizeConditions(trials, cfg.DDM.Quantiles, 0, ddm.ByCorrect)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]any{
					"trials":     len(trials),
					"subjects":   simCfg.Subjects,
					"output":     output,
					"conditions": reports,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Simulated %d trials (%d subjects, %d per level)\n", len(trials), simCfg.Subjects, simCfg.TrialsPerLevel)
			if output != "" {
				fmt.Fprintf(out, "  Written to %s\n", output)
			}
			printConditionReports(out, reports)
			return nil
		},
	}

	cmd.Flags().Int("subjects", 0, "Simulated subjects (default: ddm.subjects)")
	cmd.Flags().Int("trials", 0, "Trials per stimulus level and condition (default: ddm.trials_per_level)")
	cmd.Flags().Int64("seed", 1, "Base seed (default: ddm.seed)")
	cmd.Flags().Int("workers", 0, "Concurrent subjects, 0 = one per subject")
	cmd.Flags().Bool("go-nogo", false, "Hide RTs of withheld responses")
	cmd.Flags().String("output", "", "Write the trial table as an Arrow IPC file")
	return cmd
}

func newDDMSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary <file>",
		Short: "Summarize a DDM trial table per condition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			q, err := quantilesFlag(cmd, cfg)
			if err != nil {
				return err
			}
			bins, _ := cmd.Flags().GetInt("histogram")
			sign := ddm.ByCorrect
			if s, _ := cmd.Flags().GetString("sign"); s == "response" {
				sign = ddm.ByResponse
			} else if s != "correct" {
				return fmt.Errorf("invalid --sign %q (want correct or response)", s)
			}

			trials, err := export.ReadDDMFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			reports, err := summarizeConditions(trials, q, bins, sign)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]any{
					"path":       args[0],
					"trials":     len(trials),
					"conditions": reports,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d trials\n", args[0], len(trials))
			printConditionReports(cmd.OutOrStdout(), reports)
			return nil
		},
	}

	cmd.Flags().String("quantiles", "", "Comma-separated RT quantiles (default: ddm.quantiles)")
	cmd.Flags().Int("histogram", 0, "Also compute a signed RT histogram with this many bins")
	cmd.Flags().String("sign", "correct", "Histogram sign convention: correct or response")
	return cmd
}

func quantilesFlag(cmd *cobra.Command, cfg *config.GonogoConfig) ([]float64, error) {
	s, _ := cmd.Flags().GetString("quantiles")
	if s == "" {
		return cfg.DDM.Quantiles, nil
	}
	var q []float64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid quantile %q: %w", part, err)
		}
		q = append(q, v)
	}
	if err := ddm.ValidateQuantiles(q); err != nil {
		return nil, fmt.Errorf("invalid quantiles: %w", err)
	}
	return q, nil
}

// summarizeConditions summarizes each condition and, when bins > 0, adds a
// signed RT histogram spanning the 99th RT percentile.
func summarizeConditions(trials []ddm.Trial, q []float64, bins int, sign ddm.RTSign) ([]conditionReport, error) {
	groups := ddm.ByCondition(trials)
	reports := make([]conditionReport, 0, len(groups))
	for _, id := range ddm.SortedKeys(groups) {
		sum, err := ddm.Summarize(groups[id], q)
		if err != nil {
			return nil, fmt.Errorf("condition %d: %w", id, err)
		}
		rep := conditionReport{Condition: id, Summary: sum}
		if bins > 0 {
			if maxRT := ddm.Percentile99(groups[id]); maxRT > 0 {
				h, err := ddm.SignedHistogram(ddm.SignedRTs(groups[id], sign), maxRT, bins)
				if err != nil {
					return nil, fmt.Errorf("condition %d: %w", id, err)
				}
				rep.Histogram = &h
			}
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

func printConditionReports(w io.Writer, reports []conditionReport) {
	for _, r := range reports {
		s := r.Summary
		fmt.Fprintf(w, "\nCondition %d: n=%d, missing RT=%d\n", r.Condition, s.N, s.MissingRT)
		fmt.Fprintf(w, "  P(correct)=%.3f  P(response)=%.3f\n", s.PCorrect, s.PResponse)
		if len(s.RTQuantiles) > 0 {
			parts := make([]string, len(s.RTQuantiles))
			for i, v := range s.RTQuantiles {
				parts[i] = fmt.Sprintf("q%.2g=%.3fs", s.Quantiles[i], v)
			}
			fmt.Fprintf(w, "  RT quantiles: %s\n", strings.Join(parts, " "))
		}
		for _, b := range s.Bins {
			fmt.Fprintf(w, "  bin %d: n=%d mean RT=%.3fs P(correct)=%.3f P(response)=%.3f\n",
				b.Index, b.N, b.MeanRT, b.PCorrect, b.PResponse)
		}
		if r.Histogram != nil {
			fmt.Fprintf(w, "  histogram: %d bins over [%.3f, %.3f]\n",
				len(r.Histogram.Density), r.Histogram.Edges[0], r.Histogram.Edges[len(r.Histogram.Edges)-1])
		}
	}
}
