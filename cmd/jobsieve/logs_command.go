package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"jobsieve/internal/logging"
	"jobsieve/internal/logs"
)

const followWait = 2 * time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the daemon log, optionally filtered by run or source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)

			tailCtx := cmd.Context()
			if follow {
				var stop context.CancelFunc
				tailCtx, stop = signalContext(cmd)
				defer stop()
			}
			if tailCtx == nil {
				tailCtx = context.Background()
			}

			out := cmd.OutOrStdout()
			opts := logs.TailOptions{Offset: -1, Limit: lines, Filter: filter}
			for {
				result, err := logs.Tail(tailCtx, path, opts)
				for _, line := range result.Lines {
					fmt.Fprintln(out, line)
				}
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				if !follow || tailCtx.Err() != nil {
					return nil
				}
				opts = logs.TailOptions{Offset: result.Offset, Follow: true, Wait: followWait, Filter: filter}
			}
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only lines for this run id")
	cmd.Flags().StringVar(&filter.Source, "source", "", "Only lines for this source id")
	cmd.Flags().StringVar(&filter.EventType, "event", "", "Only lines with this event_type")
	return cmd
}
