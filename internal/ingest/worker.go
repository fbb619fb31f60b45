package ingest

import (
	"context"
	"time"

	"jobsieve/internal/config"
	"jobsieve/internal/events"
	"jobsieve/internal/logging"
	"jobsieve/internal/services"
	"jobsieve/internal/sources"
)

// sourceResult carries one source's fetch outcome to the writer.
type sourceResult struct {
	src      config.Source
	result   sources.Result
	err      error
	started  time.Time
	duration time.Duration
}

func (c *Coordinator) fetchSource(ctx context.Context, runID string, src config.Source, dryRun bool) sourceResult {
	ctx = services.WithSource(ctx, src.ID)
	logger := logging.WithContext(ctx, c.logger)
	out := sourceResult{src: src, started: c.now()}
	c.bus.Publish(ctx, events.Event{Type: events.ScrapeStarted, RunID: runID, Source: src.ID, DryRun: dryRun})

	if err := services.StopRequested(ctx); err != nil {
		out.err = &sources.FetchError{Source: src.ID, Page: 1, Err: err}
		return out
	}

	adapter, err := c.adapters.Lookup(src.Kind)
	if err != nil {
		out.err = err
		out.duration = c.now().Sub(out.started)
		return out
	}

	logger.Debug("fetching source", logging.String("kind", src.Kind))
	out.result, out.err = adapter.Fetch(ctx, src)
	out.duration = c.now().Sub(out.started)
	return out
}
