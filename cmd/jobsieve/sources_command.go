package main

import (
	"log/slog"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"jobsieve/internal/config"
	"jobsieve/internal/store"
)

// recentRunWindow bounds how many scrape_runs rows are scanned for the
// latest per-source outcome.
const recentRunWindow = 200

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Show configured sources with their last recorded outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store, logger *slog.Logger) error {
				runs, err := st.RecentScrapeRuns(cmd.Context(), recentRunWindow)
				if err != nil {
					return err
				}
				latest := make(map[string]store.ScrapeRun, len(cfg.Sources))
				for _, run := range runs {
					if _, seen := latest[run.Source]; !seen {
						latest[run.Source] = run
					}
				}

				rows := make([][]string, 0, len(cfg.Sources))
				for _, src := range cfg.Sources {
					res := cfg.SourceResilience(src)
					row := []string{
						src.ID,
						src.Kind,
						yesNo(src.IsEnabled()),
						sourceTarget(src),
						strconv.FormatFloat(res.RequestsPerMinute, 'f', -1, 64),
						strconv.Itoa(res.FailureThreshold),
					}
					if run, ok := latest[src.ID]; ok {
						row = append(row,
							humanize.Time(run.StartedAt),
							strconv.Itoa(run.New),
							strconv.Itoa(run.Errors),
							run.BreakerState,
						)
					} else {
						row = append(row, "never", "-", "-", "-")
					}
					rows = append(rows, row)
				}
				writeTable(cmd,
					[]string{"ID", "Kind", "Enabled", "Target", "RPM", "Threshold", "Last run", "New", "Errors", "Breaker"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight, alignRight, alignLeft},
				)
				return nil
			})
		},
	}
}

func sourceTarget(src config.Source) string {
	switch src.Kind {
	case "greenhouse":
		return "board " + src.Board
	case "adzuna":
		target := src.Query
		if src.Location != "" {
			target += " in " + src.Location
		}
		return target
	default:
		return src.URL
	}
}
