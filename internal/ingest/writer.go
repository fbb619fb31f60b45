package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"jobsieve/internal/dedup"
	"jobsieve/internal/events"
	"jobsieve/internal/logging"
	"jobsieve/internal/services"
	"jobsieve/internal/sources"
	"jobsieve/internal/store"
)

// writeResults is the run's single writer. It drains results until the
// channel closes, even after a fatal error, so workers never block.
func (c *Coordinator) writeResults(ctx context.Context, runID string, dryRun bool, results <-chan sourceResult, logger *slog.Logger) ([]SourceSummary, error) {
	var (
		summaries []SourceSummary
		fatal     error
	)
	for res := range results {
		summary := SourceSummary{Source: res.src.ID, Kind: res.src.Kind, Duration: res.duration}
		var messages []string

		for _, page := range res.result.Pages {
			summary.Pages++
			summary.Fetched += len(page.Postings)
			for _, perr := range page.ParseErrors {
				summary.Errors++
				logging.WarnWithContext(logger, "listing skipped", "parse_error",
					logging.String(logging.FieldSource, res.src.ID),
					logging.Int("page", perr.Page),
					logging.Int("index", perr.Index),
					logging.String("reason", perr.Reason),
					logging.String(logging.FieldErrorHint, "check the source's selectors or payload format"),
					logging.String(logging.FieldImpact, "one listing not ingested"),
				)
			}
			if fatal != nil || len(page.Postings) == 0 {
				continue
			}
			if err := c.writePage(ctx, runID, dryRun, page, &summary); err != nil {
				summary.Errors++
				messages = append(messages, err.Error())
				summary.ErrorKind = services.ErrorKind(err)
				if services.IsFatal(err) {
					fatal = err
				}
				logging.ErrorWithContext(logger, "page write failed", "page_write_failed",
					logging.String(logging.FieldSource, res.src.ID),
					logging.Int("page", page.Number),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "retry the run; check the database with jobsieve check"),
				)
			}
		}

		if res.err != nil {
			summary.Errors++
			messages = append(messages, res.err.Error())
			summary.ErrorKind = errorKind(res.err)
			logging.WarnWithContext(logger, "source fetch failed", "source_failed",
				logging.String(logging.FieldSource, res.src.ID),
				logging.Error(res.err),
				logging.Int("pages_kept", summary.Pages),
				logging.String(logging.FieldImpact, "other sources are unaffected"),
			)
		}
		summary.Error = strings.Join(messages, "; ")
		summary.BreakerState = c.guards.State(res.src.ID).String()

		if !dryRun && fatal == nil {
			_, err := c.store.RecordScrapeRun(ctx, store.ScrapeRun{
				RunID:        runID,
				Source:       summary.Source,
				Fetched:      summary.Fetched,
				New:          summary.New,
				Updated:      summary.Updated,
				Errors:       summary.Errors,
				Duration:     summary.Duration,
				ErrorMessage: summary.Error,
				BreakerState: summary.BreakerState,
				StartedAt:    res.started.UTC(),
			})
			if err != nil {
				logging.WarnWithContext(logger, "scrape run not recorded", "scrape_run_record_failed",
					logging.String(logging.FieldSource, summary.Source),
					logging.Error(err),
					logging.String(logging.FieldImpact, "run history is missing this source"),
				)
			}
		}

		c.bus.Publish(ctx, events.Event{
			Type:       events.ScrapeCompleted,
			RunID:      runID,
			Source:     summary.Source,
			Fetched:    summary.Fetched,
			New:        summary.New,
			Updated:    summary.Updated,
			Errors:     summary.Errors,
			DurationMS: summary.Duration.Milliseconds(),
			Error:      summary.Error,
			DryRun:     dryRun,
		})
		summaries = append(summaries, summary)
	}
	return summaries, fatal
}

func (c *Coordinator) writePage(ctx context.Context, runID string, dryRun bool, page sources.Page, summary *SourceSummary) error {
	if dryRun {
		res, err := c.engine.Classify(ctx, page)
		if err != nil {
			return err
		}
		summary.New += res.New
		summary.Updated += res.Updated
		return nil
	}

	res, err := c.engine.ApplyPage(ctx, page, c.now())
	if err != nil {
		return err
	}
	summary.New += res.New
	summary.Updated += res.Updated
	c.publishOutcomes(ctx, runID, page.Source, res)
	return nil
}

func (c *Coordinator) publishOutcomes(ctx context.Context, runID, source string, res dedup.PageResult) {
	for _, o := range res.Outcomes {
		switch {
		case o.Created:
			c.bus.Publish(ctx, events.Event{
				Type:    events.NewJob,
				RunID:   runID,
				Source:  source,
				JobID:   o.Job.ID,
				Title:   o.Job.Title,
				Company: o.Job.Company,
				Score:   o.Job.Score,
			})
		case len(o.ChangedFields) > 0:
			c.bus.Publish(ctx, events.Event{
				Type:          events.JobUpdated,
				RunID:         runID,
				Source:        source,
				JobID:         o.Job.ID,
				ChangedFields: o.ChangedFields,
			})
		}
	}
}

func errorKind(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return services.ErrorKind(err)
}
