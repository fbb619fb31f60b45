package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"jobsieve/internal/config"
	"jobsieve/internal/daemon"
	"jobsieve/internal/events"
	"jobsieve/internal/ingest"
	"jobsieve/internal/integrity"
	"jobsieve/internal/store"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run ingestion, integrity checks and backups on their schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd)
			defer stop()

			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				mgr := integrity.NewManager(st, cfg, logger)
				if _, err := mgr.Startup(runCtx); err != nil {
					return err
				}
				bus := events.NewFromConfig(runCtx, cfg, logger)
				defer bus.Close()

				coord := ingest.New(cfg, st, logger, ingest.Options{Bus: bus})
				d, err := daemon.New(cfg, coord, mgr, logger)
				if err != nil {
					return err
				}
				if err := d.Start(runCtx, !skipInitial); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "jobsieve daemon running (lock %s); press Ctrl+C to stop\n", cfg.LockPath())

				<-runCtx.Done()
				d.Stop()
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "no-initial-run", false, "Wait for the first scheduled ingest instead of running one at startup")
	return cmd
}
