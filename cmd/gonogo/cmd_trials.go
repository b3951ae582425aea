package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/gonogo/internal/constants"
	"github.com/nvandessel/gonogo/internal/export"
	"github.com/nvandessel/gonogo/internal/store"
	"github.com/spf13/cobra"
)

func newTrialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trials",
		Short: "List, export and import stored trials",
		Long: `Work with the trial database shared by the experiment server and agent
simulations. Human trials have source=human, simulated ones source=agent.

Examples:
  gonogo trials list --source agent --limit 20
  gonogo trials export trials.arrow --user abc
  gonogo trials export trials.jsonl
  gonogo trials import trials.arrow`,
	}

	cmd.AddCommand(
		newTrialsListCmd(),
		newTrialsExportCmd(),
		newTrialsImportCmd(),
	)
	return cmd
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "Only trials from this participant")
	cmd.Flags().String("session", "", "Only trials from this session")
	cmd.Flags().String("source", "", "Only human or agent trials")
}

func filterFromFlags(cmd *cobra.Command) (store.Filter, error) {
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")
	source, _ := cmd.Flags().GetString("source")

	f := store.Filter{UserID: user, SessionID: session}
	if source != "" {
		src := constants.Source(strings.ToLower(source))
		if !src.Valid() {
			return store.Filter{}, fmt.Errorf("invalid source %q (want human or agent)", source)
		}
		f.Source = src
	}
	return f, nil
}

// trialFormat picks the file format from --format or the file extension.
func trialFormat(cmd *cobra.Command, path string) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jsonl", ".ndjson":
			format = "jsonl"
		default:
			format = "arrow"
		}
	}
	format = strings.ToLower(format)
	if format != "arrow" && format != "jsonl" {
		return "", fmt.Errorf("unsupported format %q (want arrow or jsonl)", format)
	}
	return format, nil
}

func newTrialsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored trials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}
			filter.Limit, _ = cmd.Flags().GetInt("limit")

			ts, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer ts.Close()

			trials, err := ts.ListTrials(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list trials: %w", err)
			}
			if trials == nil {
				trials = []store.TrialRecord{}
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]any{
					"trials": trials,
					"count":  len(trials),
				})
			}

			if len(trials) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No trials found.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSER\tSOURCE\tTRIAL\tBLOCK\tSTIMULUS\tRT(MS)\tCORRECT\tSCORE\tTIME")
			for _, t := range trials {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%d\t%v\t%d\t%s\n",
					t.ID, t.UserID, t.Source, t.TrialNumber, valueOrDash(t.Block), t.Stimulus,
					t.ReactionTime, t.Correct, t.NewScore, t.Timestamp.Local().Format(time.DateTime))
			}
			return w.Flush()
		},
	}

	addFilterFlags(cmd)
	cmd.Flags().Int("limit", 50, "Maximum trials to show (0 = all)")
	return cmd
}

func newTrialsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export trials to an Arrow IPC or JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			format, err := trialFormat(cmd, path)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}

			ts, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer ts.Close()

			var n int
			if format == "jsonl" {
				n, err = store.ExportJSONL(cmd.Context(), ts, filter, path)
			} else {
				var trials []store.TrialRecord
				trials, err = ts.ListTrials(cmd.Context(), filter)
				if err == nil {
					n = len(trials)
					err = export.WriteTrialsFile(path, trials)
				}
			}
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]any{"path": path, "format": format, "count": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d trials (%s) to %s\n", n, format, path)
			return nil
		},
	}

	addFilterFlags(cmd)
	cmd.Flags().String("format", "", "arrow or jsonl (default: from file extension, else arrow)")
	return cmd
}

func newTrialsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import trials from an Arrow IPC or JSONL file",
		Long: `Import trials exported by 'gonogo trials export'. Rows get new ids;
sessions that are not in the database get placeholder entries.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			format, err := trialFormat(cmd, path)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ts, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer ts.Close()

			var n int
			if format == "jsonl" {
				n, err = store.ImportJSONL(cmd.Context(), ts, path)
			} else {
				var trials []store.TrialRecord
				trials, err = export.ReadTrialsFile(path)
				if err == nil {
					n, err = store.ImportTrials(cmd.Context(), ts, trials)
				}
			}
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]any{"path": path, "format": format, "count": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d trials from %s\n", n, path)
			return nil
		},
	}

	cmd.Flags().String("format", "", "arrow or jsonl (default: from file extension, else arrow)")
	return cmd
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
