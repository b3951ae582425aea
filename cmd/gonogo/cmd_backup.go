package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/gonogo/internal/backup"
	"github.com/nvandessel/gonogo/internal/config"
	"github.com/nvandessel/gonogo/internal/pathutil"
	"github.com/nvandessel/gonogo/internal/store"
	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up and restore sessions and trials",
		Long: `Backup every session and trial to a compressed file.

Default location: ~/.gonogo/backups/gonogo-backup-YYYYMMDD-HHMMSS.ffffff.json.gz
Old backups are removed according to the backup retention settings
(default: keep the last 10).

Examples:
  gonogo backup                              # Backup to default location
  gonogo backup --output my-backup.json.gz   # Backup to a specific file
  gonogo backup list                         # List all backups
  gonogo backup verify <file>                # Verify backup integrity
  gonogo backup restore <file> --mode replace`,
		RunE: runBackupCreate,
	}
	addBackupCreateFlags(cmd)

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a backup (same as 'gonogo backup')",
		RunE:  runBackupCreate,
	}
	addBackupCreateFlags(create)

	cmd.AddCommand(
		create,
		newBackupListCmd(),
		newBackupVerifyCmd(),
		newBackupRestoreCmd(),
	)
	return cmd
}

func addBackupCreateFlags(cmd *cobra.Command) {
	cmd.Flags().String("output", "", "Output file path (default: auto-generated in the backup directory)")
}

// backupDir returns backup.dir or <data_dir>/backups.
func backupDir(cfg *config.GonogoConfig) (string, error) {
	if cfg.Backup.Dir != "" {
		return cfg.Backup.Dir, nil
	}
	dir, err := store.ResolveDataDir(cfg.DataDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return filepath.Join(dir, pathutil.BackupsDir), nil
}

// allowedBackupDirs lists where user-named backup files may live: the backup
// directory, the data directory's backups/ and exports/, and the working
// directory.
func allowedBackupDirs(cfg *config.GonogoConfig) ([]string, error) {
	bdir, err := backupDir(cfg)
	if err != nil {
		return nil, err
	}
	dataDir, err := store.ResolveDataDir(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	dirs := append([]string{bdir}, pathutil.AllowedDirs(dataDir)...)
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	return dirs, nil
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir, err := backupDir(cfg)
	if err != nil {
		return err
	}

	var allowed []string
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = backup.GenerateBackupPath(dir)
	} else {
		allowed, err = allowedBackupDirs(cfg)
		if err != nil {
			return err
		}
	}

	ts, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer ts.Close()

	header, err := backup.Backup(cmd.Context(), ts, outputPath, allowed...)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	var removed []string
	if policy, err := cfg.Backup.Retention(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: invalid retention settings: %v\n", err)
	} else if removed, err = backup.ApplyRetention(filepath.Dir(outputPath), policy); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
	}

	var sizeBytes int64
	if info, err := os.Stat(outputPath); err == nil {
		sizeBytes = info.Size()
	}

	if jsonOutput(cmd) {
		return writeJSON(cmd, map[string]any{
			"path":          outputPath,
			"trial_count":   header.TrialCount,
			"session_count": header.SessionCount,
			"checksum":      header.Checksum,
			"size_bytes":    sizeBytes,
			"rotated":       len(removed),
			"message":       fmt.Sprintf("Backup created: %d sessions, %d trials", header.SessionCount, header.TrialCount),
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %d sessions, %d trials (%s)\n",
		header.SessionCount, header.TrialCount, formatBytes(sizeBytes))
	fmt.Fprintf(cmd.OutOrStdout(), "  Path: %s\n", outputPath)
	if len(removed) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "  Rotated out %d old backup(s)\n", len(removed))
	}
	return nil
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all backups with metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := backupDir(cfg)
			if err != nil {
				return err
			}
			backups, err := backup.ListBackups(dir)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}
			if backups == nil {
				backups = []backup.Info{}
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, map[string]any{
					"backups":     backups,
					"total_count": len(backups),
					"directory":   dir,
				})
			}

			out := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintf(out, "No backups found in %s\n", dir)
				return nil
			}

			fmt.Fprintf(out, "Backups in %s:\n", dir)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			var totalSize int64
			for _, b := range backups {
				totalSize += b.Size
				status := fmt.Sprintf("%d trials", b.Trials)
				if !b.Valid {
					status = "unreadable header"
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n",
					filepath.Base(b.Path), b.CreatedAt.Local().Format(time.DateTime), formatBytes(b.Size), status)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nTotal: %d backups, %s\n", len(backups), formatBytes(totalSize))
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a backup's checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, err := backup.Verify(args[0])
			if jsonOutput(cmd) {
				result := map[string]any{"path": args[0], "valid": err == nil}
				if err != nil {
					result["error"] = err.Error()
				} else {
					result["version"] = header.Version
					result["trial_count"] = header.TrialCount
					result["session_count"] = header.SessionCount
					result["checksum"] = header.Checksum
					result["created_at"] = header.CreatedAt.Format(time.RFC3339)
				}
				if werr := writeJSON(cmd, result); werr != nil {
					return werr
				}
				return err
			}
			if err != nil {
				return fmt.Errorf("backup verification failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Backup OK: %s\n", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "  Version:  %d\n", header.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Created:  %s\n", header.CreatedAt.Local().Format(time.DateTime))
			fmt.Fprintf(cmd.OutOrStdout(), "  Contents: %d sessions, %d trials\n", header.SessionCount, header.TrialCount)
			fmt.Fprintf(cmd.OutOrStdout(), "  Checksum: %s\n", header.Checksum)
			return nil
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore sessions and trials from a backup",
		Long: `Restore a backup into the trial database.

In merge mode (default) trials already present are skipped. In replace mode
every stored trial is deleted first. Existing sessions are always kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			modeStr, _ := cmd.Flags().GetString("mode")
			mode, err := backup.ParseRestoreMode(modeStr)
			if err != nil {
				return err
			}
			allowed, err := allowedBackupDirs(cfg)
			if err != nil {
				return err
			}

			ts, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer ts.Close()

			result, err := backup.Restore(cmd.Context(), ts, args[0], mode, allowed...)
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restored from %s (%s):\n", args[0], mode)
			if result.TrialsDeleted > 0 {
				fmt.Fprintf(out, "  Trials deleted:    %d\n", result.TrialsDeleted)
			}
			fmt.Fprintf(out, "  Trials restored:   %d (%d skipped)\n", result.TrialsRestored, result.TrialsSkipped)
			fmt.Fprintf(out, "  Sessions restored: %d (%d skipped)\n", result.SessionsRestored, result.SessionsSkipped)
			return nil
		},
	}

	cmd.Flags().String("mode", "merge", "Restore mode: merge or replace")
	return cmd
}

// formatBytes renders a size with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
