package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"jobsieve/internal/config"
	"jobsieve/internal/dedup"
	"jobsieve/internal/events"
	"jobsieve/internal/logging"
	"jobsieve/internal/resilience"
	"jobsieve/internal/services"
	"jobsieve/internal/sources"
	"jobsieve/internal/store"
)

// Options supplies optional collaborators. Zero values are built from the
// configuration.
type Options struct {
	HTTPClient *http.Client
	Adapters   *sources.Registry
	Guards     *resilience.Registry
	Bus        *events.Bus
	Now        func() time.Time
}

// Coordinator owns the state shared across runs: breaker registry, request
// budget, adapters, dedup engine, and event bus.
type Coordinator struct {
	cfg      *config.Config
	store    *store.Store
	engine   *dedup.Engine
	adapters *sources.Registry
	guards   *resilience.Registry
	bus      *events.Bus
	logger   *slog.Logger
	now      func() time.Time

	runMu sync.Mutex
}

// New builds a Coordinator writing into st.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger, opts Options) *Coordinator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	guards := opts.Guards
	if guards == nil {
		guards = resilience.NewRegistry(cfg, logger, now)
	}
	budget := semaphore.NewWeighted(int64(max(cfg.Ingest.MaxInFlightRequests, 1)))
	adapters := opts.Adapters
	if adapters == nil {
		client := sources.NewClient(sources.ClientOptions{
			UserAgent:      cfg.Ingest.UserAgent,
			RequestTimeout: cfg.RequestTimeout(),
			HTTPClient:     opts.HTTPClient,
			Guards:         guards,
			Budget:         budget,
			Logger:         logger,
		})
		adapters = sources.NewRegistry(client)
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(logger)
	}
	return &Coordinator{
		cfg:      cfg,
		store:    st,
		engine:   dedup.NewEngine(st, cfg, logger),
		adapters: adapters,
		guards:   guards,
		bus:      bus,
		logger:   logging.NewComponentLogger(logger, "ingest"),
		now:      now,
	}
}

// Guards exposes the breaker registry for status reporting.
func (c *Coordinator) Guards() *resilience.Registry {
	return c.guards
}

// RunOnce fetches every enabled source once and writes the results. The
// returned error is reserved for conditions that stop the whole run, such as
// a failed integrity check; per-source failures are reported in the summary.
func (c *Coordinator) RunOnce(ctx context.Context, dryRun bool) (RunSummary, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	runID := uuid.NewString()
	started := c.now()
	summary := RunSummary{RunID: runID, DryRun: dryRun, StartedAt: started.UTC()}
	logger := c.logger.With(logging.String(logging.FieldRunID, runID))

	if err := c.checkIntegrity(ctx); err != nil {
		logging.ErrorWithContext(logger, "refusing to ingest into a damaged database", "ingest_refused",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run jobsieve restore <backup>"),
		)
		return summary, err
	}

	enabled := c.cfg.EnabledSources()
	if len(enabled) == 0 {
		logging.WarnWithContext(logger, "no sources enabled", "no_sources",
			logging.String(logging.FieldErrorHint, "enable at least one [[sources]] entry"),
			logging.String(logging.FieldImpact, "run fetched nothing"),
		)
		summary.Duration = c.now().Sub(started)
		return summary, nil
	}

	ctx = services.WithRunID(ctx, runID)
	logger.Info("run started",
		logging.Int("sources", len(enabled)),
		logging.Bool("dry_run", dryRun),
	)

	runCtx, cancelRun := context.WithCancel(ctx)
	if timeout := c.cfg.RunTimeout(); timeout > 0 {
		runCtx, cancelRun = context.WithTimeout(ctx, timeout)
	}
	defer cancelRun()
	fetchCtx, cancelFetch := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelFetch()
	fetchCtx = services.WithStopSignal(fetchCtx, runCtx)

	done := make(chan struct{})
	go c.enforceGrace(runCtx, done, cancelFetch, logger)

	results := make(chan sourceResult, len(enabled))
	var workers sync.WaitGroup
	queue := make(chan config.Source)
	for range c.cfg.Concurrency(len(enabled)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for src := range queue {
				results <- c.fetchSource(fetchCtx, runID, src, dryRun)
			}
		}()
	}
	go func() {
		defer close(queue)
		for _, src := range enabled {
			queue <- src
		}
	}()
	go func() {
		workers.Wait()
		close(done)
		close(results)
	}()

	writeCtx := context.WithoutCancel(ctx)
	summaries, fatal := c.writeResults(writeCtx, runID, dryRun, results, logger)

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Source < summaries[j].Source })
	summary.Sources = summaries
	for _, s := range summaries {
		summary.addTotals(s)
	}
	summary.Duration = c.now().Sub(started)
	summary.TimedOut = runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	summary.Interrupted = ctx.Err() != nil
	summary.Breakers = c.guards.Snapshot()

	logger.Info("run finished",
		logging.Int("fetched", summary.Fetched),
		logging.Int("new", summary.New),
		logging.Int("updated", summary.Updated),
		logging.Int("errors", summary.Errors),
		logging.Duration("duration", summary.Duration),
		logging.Bool("timed_out", summary.TimedOut),
		logging.Bool("interrupted", summary.Interrupted),
	)
	return summary, fatal
}

// enforceGrace cancels fetches once the grace period has passed after the
// run context ends, unless all workers finish first.
func (c *Coordinator) enforceGrace(runCtx context.Context, done <-chan struct{}, cancelFetch context.CancelFunc, logger *slog.Logger) {
	select {
	case <-done:
		return
	case <-runCtx.Done():
	}
	grace := c.cfg.GracePeriod()
	logger.Info("run stopping; waiting for in-flight pages",
		logging.Duration("grace_period", grace),
		logging.String("reason", runCtx.Err().Error()),
	)
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logging.WarnWithContext(logger, "grace period elapsed; cancelling in-flight fetches", "grace_elapsed",
			logging.String(logging.FieldImpact, "pages still being fetched are abandoned"),
		)
		cancelFetch()
	}
}

// checkIntegrity refuses a run when the startup check or the most recent
// recorded quick or full check failed.
func (c *Coordinator) checkIntegrity(ctx context.Context) error {
	failed := func(check store.IntegrityCheck) error {
		return services.Wrap(services.ErrIntegrity, "ingest", "run",
			string(check.Type)+" check failed: "+check.Detail+"; restore a snapshot with `jobsieve restore <backup>`", nil)
	}
	if check := c.store.StartupCheck(); check.Status == store.CheckFailed {
		return failed(check)
	}
	recent, err := c.store.RecentChecks(ctx, 20)
	if err != nil {
		return err
	}
	for _, check := range recent {
		if check.Type == store.CheckForeignKey {
			continue
		}
		if check.Status == store.CheckFailed {
			return failed(check)
		}
		return nil
	}
	return nil
}
