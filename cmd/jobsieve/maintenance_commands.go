package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jobsieve/internal/config"
	"jobsieve/internal/integrity"
	"jobsieve/internal/store"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var full bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the jobs database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWriter(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				mgr := integrity.NewManager(st, cfg, logger)
				startup, err := mgr.Startup(cmd.Context())
				checks := []store.IntegrityCheck{startup}
				if err == nil && full {
					var more []store.IntegrityCheck
					more, err = mgr.FullCheck(cmd.Context())
					checks = append(checks, more...)
				}
				printChecks(cmd, checks)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Also run integrity_check and foreign_key_check")
	return cmd
}

func printChecks(cmd *cobra.Command, checks []store.IntegrityCheck) {
	rows := make([][]string, 0, len(checks))
	for _, check := range checks {
		if check.Type == "" {
			continue
		}
		rows = append(rows, []string{
			string(check.Type),
			string(check.Status),
			check.Duration.Round(time.Millisecond).String(),
			check.Detail,
		})
	}
	writeTable(cmd, []string{"Check", "Status", "Duration", "Detail"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft})
}

func newBackupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a verified snapshot of the jobs database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withWriter(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				mgr := integrity.NewManager(st, cfg, logger)
				rec, err := mgr.Backup(cmd.Context())
				if err != nil {
					return err
				}
				if _, err := mgr.PruneRecords(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Snapshot written to %s (%s)\n", rec.Path, humanize.IBytes(uint64(rec.SizeBytes)))
				return nil
			})
		},
	}
}

func newBackupsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List snapshot attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				records, err := st.ListBackups(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No backups recorded")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					status := "ok"
					if !rec.Success {
						status = "failed: " + rec.ErrorMessage
					}
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10),
						rec.CreatedAt.Local().Format(time.DateTime),
						filepath.Base(rec.Path),
						humanize.IBytes(uint64(max(rec.SizeBytes, 0))),
						status,
					})
				}
				writeTable(cmd, []string{"ID", "Created", "File", "Size", "Status"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft})
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records to show")
	return cmd
}

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot>",
		Short: "Replace the jobs database with a verified snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withWriterLock(func(cfg *config.Config) error {
				snapshot := strings.TrimSpace(args[0])
				if !filepath.IsAbs(snapshot) && !strings.ContainsRune(snapshot, filepath.Separator) {
					snapshot = filepath.Join(cfg.Paths.BackupDir, snapshot)
				}

				_, statErr := os.Stat(cfg.DatabasePath())
				if err := integrity.Restore(cmd.Context(), cfg.DatabasePath(), snapshot, logger); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Restored %s from %s\n", cfg.DatabasePath(), snapshot)
				if statErr == nil {
					fmt.Fprintf(out, "Previous database kept at %s.pre-restore\n", cfg.DatabasePath())
				}
				return nil
			})
		},
	}
}
