package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"jobsieve/internal/config"
	"jobsieve/internal/events"
	"jobsieve/internal/ingest"
	"jobsieve/internal/integrity"
	"jobsieve/internal/store"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch every enabled source once",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signalContext(cmd)
			defer stop()

			return ctx.withWriter(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				if _, err := integrity.NewManager(st, cfg, logger).Startup(runCtx); err != nil {
					return err
				}
				bus := events.NewFromConfig(runCtx, cfg, logger)
				defer bus.Close()

				coord := ingest.New(cfg, st, logger, ingest.Options{Bus: bus})
				summary, err := coord.RunOnce(runCtx, dryRun)
				if asJSON {
					if jsonErr := writeJSON(cmd, summary); jsonErr != nil {
						return jsonErr
					}
				} else {
					printRunSummary(cmd, summary)
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Fetch and classify without writing to the database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the run summary as JSON")
	return cmd
}

func printRunSummary(cmd *cobra.Command, summary ingest.RunSummary) {
	out := cmd.OutOrStdout()
	if len(summary.Sources) == 0 {
		fmt.Fprintln(out, "No sources fetched")
		return
	}

	rows := make([][]string, 0, len(summary.Sources))
	for _, src := range summary.Sources {
		rows = append(rows, []string{
			src.Source,
			src.Kind,
			strconv.Itoa(src.Fetched),
			strconv.Itoa(src.New),
			strconv.Itoa(src.Updated),
			strconv.Itoa(src.Errors),
			src.BreakerState,
			src.Duration.Round(time.Millisecond).String(),
		})
	}
	writeTable(cmd,
		[]string{"Source", "Kind", "Fetched", "New", "Updated", "Errors", "Breaker", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft, alignRight},
	)

	label := "Run"
	if summary.DryRun {
		label = "Dry run"
	}
	fmt.Fprintf(out, "%s %s: %d fetched, %d new, %d updated, %d errors in %s\n",
		label, summary.RunID, summary.Fetched, summary.New, summary.Updated, summary.Errors,
		summary.Duration.Round(time.Millisecond))
	if summary.TimedOut {
		fmt.Fprintln(out, "Run timed out; pages fetched before the deadline were kept")
	}
	if summary.Interrupted {
		fmt.Fprintln(out, "Run interrupted; pages fetched before shutdown were kept")
	}
}
