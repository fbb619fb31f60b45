package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"jobsieve/internal/config"
	"jobsieve/internal/events"
	"jobsieve/internal/ingest"
	"jobsieve/internal/logging"
	"jobsieve/internal/services"
	"jobsieve/internal/sources"
	"jobsieve/internal/store"
	"jobsieve/internal/testsupport"
)

type board struct {
	server *httptest.Server
	broken atomic.Int32
}

func newBoard(t *testing.T) *board {
	t.Helper()
	b := &board{}
	listings := testsupport.ServeFixture(t, "listings.html")
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/careers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Query().Get("page") != "" {
			fmt.Fprint(w, "<html><body><ul class=\"jobs\"></ul></body></html>")
			return
		}
		_, _ = w.Write(listings)
	})
	mux.HandleFunc("/boards/down/jobs", func(w http.ResponseWriter, r *http.Request) {
		b.broken.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *board) htmlSource() config.Source {
	return config.Source{
		ID:        "careers",
		Kind:      "html",
		URL:       b.server.URL + "/careers",
		MaxPages:  3,
		PageParam: "page",
		Currency:  "USD",
		Selectors: config.Selectors{
			Item:        "li.job",
			Title:       ".title",
			Company:     ".company",
			Location:    ".location",
			Link:        "a.link",
			Description: ".summary",
			Salary:      ".salary",
			Posted:      "time",
			IDAttr:      "data-id",
		},
	}
}

func (b *board) downSource() config.Source {
	return config.Source{ID: "down", Kind: "greenhouse", Board: "down", URL: b.server.URL + "/boards"}
}

func newCoordinator(t *testing.T, cfg *config.Config, opts ingest.Options) (*ingest.Coordinator, *store.Store, *events.Recorder) {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	rec := events.NewRecorder()
	if opts.Bus == nil {
		opts.Bus = events.NewBus(logging.NewNop(), rec)
	}
	return ingest.New(cfg, st, logging.NewNop(), opts), st, rec
}

func TestRunIsolatesFailuresAndMalformedListings(t *testing.T) {
	b := newBoard(t)
	cfg := testsupport.NewConfig(t, testsupport.WithSources(b.htmlSource(), b.downSource()))
	coord, st, rec := newCoordinator(t, cfg, ingest.Options{})
	ctx := context.Background()

	summary, err := coord.RunOnce(ctx, false)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	careers, ok := summary.Source("careers")
	if !ok {
		t.Fatal("missing careers summary")
	}
	if careers.Fetched != 49 || careers.New != 49 || careers.Errors != 1 {
		t.Fatalf("expected 49 fetched/new and 1 error, got %+v", careers)
	}
	down, ok := summary.Source("down")
	if !ok {
		t.Fatal("missing down summary")
	}
	if down.Errors != 1 || down.ErrorKind != "network" || down.Fetched != 0 {
		t.Fatalf("expected network failure isolated to its source, got %+v", down)
	}
	if summary.New != 49 || summary.Errors != 2 {
		t.Fatalf("unexpected totals %+v", summary)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}

	count, err := st.CountJobs(ctx)
	if err != nil {
		t.Fatalf("CountJobs: %v", err)
	}
	if count != 49 {
		t.Fatalf("expected 49 stored jobs, got %d", count)
	}
	runs, err := st.RecentScrapeRuns(ctx, 10)
	if err != nil {
		t.Fatalf("RecentScrapeRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 scrape run rows, got %d", len(runs))
	}
	for _, r := range runs {
		if r.RunID != summary.RunID {
			t.Fatalf("scrape run %+v not tied to run %s", r, summary.RunID)
		}
	}

	if got := len(rec.OfType(events.ScrapeStarted)); got != 2 {
		t.Fatalf("expected 2 scrape_started events, got %d", got)
	}
	if got := len(rec.OfType(events.ScrapeCompleted)); got != 2 {
		t.Fatalf("expected 2 scrape_completed events, got %d", got)
	}
	if got := len(rec.OfType(events.NewJob)); got != 49 {
		t.Fatalf("expected 49 new_job events, got %d", got)
	}

	again, err := coord.RunOnce(ctx, false)
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	careers, _ = again.Source("careers")
	if careers.New != 0 || careers.Updated != 49 {
		t.Fatalf("expected re-sightings on second run, got %+v", careers)
	}
	if count, _ := st.CountJobs(ctx); count != 49 {
		t.Fatalf("expected still 49 rows after second run, got %d", count)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	b := newBoard(t)
	cfg := testsupport.NewConfig(t, testsupport.WithSources(b.htmlSource()))
	coord, st, rec := newCoordinator(t, cfg, ingest.Options{})
	ctx := context.Background()

	summary, err := coord.RunOnce(ctx, true)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !summary.DryRun || summary.New != 49 {
		t.Fatalf("expected 49 new postings classified, got %+v", summary)
	}
	if count, _ := st.CountJobs(ctx); count != 0 {
		t.Fatalf("dry run wrote %d jobs", count)
	}
	if runs, _ := st.RecentScrapeRuns(ctx, 10); len(runs) != 0 {
		t.Fatalf("dry run recorded %d scrape runs", len(runs))
	}
	if got := len(rec.OfType(events.NewJob)); got != 0 {
		t.Fatalf("dry run emitted %d new_job events", got)
	}
}

func TestZeroRunTimeoutMeansNoDeadline(t *testing.T) {
	b := newBoard(t)
	cfg := testsupport.NewConfig(t, testsupport.WithSources(b.htmlSource()))
	cfg.Ingest.RunTimeoutSeconds = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero run timeout should be valid: %v", err)
	}
	coord, st, _ := newCoordinator(t, cfg, ingest.Options{})
	ctx := context.Background()

	summary, err := coord.RunOnce(ctx, false)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.TimedOut || summary.New != 49 {
		t.Fatalf("expected an untimed run storing 49 jobs, got %+v", summary)
	}
	if count, _ := st.CountJobs(ctx); count != 49 {
		t.Fatalf("expected 49 stored jobs, got %d", count)
	}
}

func TestRunRefusesAfterFailedIntegrityCheck(t *testing.T) {
	b := newBoard(t)
	cfg := testsupport.NewConfig(t, testsupport.WithSources(b.htmlSource()))
	coord, st, _ := newCoordinator(t, cfg, ingest.Options{})
	ctx := context.Background()

	_, err := st.RecordCheck(ctx, store.IntegrityCheck{Type: store.CheckFull, Status: store.CheckFailed, Detail: "page 12 is never used"})
	if err != nil {
		t.Fatalf("RecordCheck: %v", err)
	}
	_, err = coord.RunOnce(ctx, false)
	if !errors.Is(err, services.ErrIntegrity) {
		t.Fatalf("expected integrity refusal, got %v", err)
	}
	if count, _ := st.CountJobs(ctx); count != 0 {
		t.Fatalf("refused run wrote %d jobs", count)
	}
}

func TestOpenBreakerShortCircuitsNextRun(t *testing.T) {
	b := newBoard(t)
	cfg := testsupport.NewConfig(t, testsupport.WithSources(b.downSource()), testsupport.WithBreaker(1, 3600))
	cfg.Resilience.MaxRetries = 0
	coord, _, _ := newCoordinator(t, cfg, ingest.Options{})
	ctx := context.Background()

	first, err := coord.RunOnce(ctx, false)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if down, _ := first.Source("down"); down.BreakerState != "OPEN" {
		t.Fatalf("expected breaker open after failure, got %+v", down)
	}
	hits := b.broken.Load()

	second, err := coord.RunOnce(ctx, false)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	down, _ := second.Source("down")
	if down.ErrorKind != "circuit_open" {
		t.Fatalf("expected circuit_open, got %+v", down)
	}
	if b.broken.Load() != hits {
		t.Fatal("open breaker must not reach the network")
	}
	if len(second.Breakers) != 1 || second.Breakers[0].State != "OPEN" {
		t.Fatalf("expected breaker snapshot in summary, got %+v", second.Breakers)
	}
}

// stubbornAdapter returns one page, then ignores stop requests until its
// context is cancelled.
type stubbornAdapter struct {
	onFirstPage func()
}

func (a *stubbornAdapter) Kind() string { return "stubborn" }

func (a *stubbornAdapter) Fetch(ctx context.Context, src config.Source) (sources.Result, error) {
	page := sources.Page{Source: src.ID, Number: 1}
	for i := range 3 {
		page.Postings = append(page.Postings, sources.Posting{
			Source:      src.ID,
			SourceJobID: fmt.Sprintf("slow-%d", i),
			URL:         fmt.Sprintf("https://slow.example/%d", i),
			Title:       "Platform Engineer",
			Company:     "Slowcorp",
		})
	}
	result := sources.Result{Pages: []sources.Page{page}}
	a.onFirstPage()
	<-ctx.Done()
	return result, &sources.FetchError{Source: src.ID, Page: 2, Err: ctx.Err()}
}

func TestShutdownKeepsFetchedPagesAfterGrace(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSources(config.Source{ID: "slow", Kind: "stubborn"}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapters := sources.NewRegistry(nil)
	adapters.Register(&stubbornAdapter{onFirstPage: cancel})
	coord, st, _ := newCoordinator(t, cfg, ingest.Options{Adapters: adapters})

	start := time.Now()
	summary, err := coord.RunOnce(ctx, false)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if elapsed := time.Since(start); elapsed < cfg.GracePeriod() {
		t.Fatalf("expected fetch to run until the grace period elapsed, took %v", elapsed)
	}
	if !summary.Interrupted {
		t.Fatal("expected interrupted run")
	}
	slow, _ := summary.Source("slow")
	if slow.New != 3 || slow.Errors != 1 || slow.ErrorKind != "cancelled" {
		t.Fatalf("expected fetched page written and cancellation counted, got %+v", slow)
	}
	if count, _ := st.CountJobs(context.Background()); count != 3 {
		t.Fatalf("expected 3 jobs written after shutdown, got %d", count)
	}
}

func TestNoEnabledSources(t *testing.T) {
	disabled := false
	cfg := testsupport.NewConfig(t, testsupport.WithSources(config.Source{ID: "off", Kind: "html", Enabled: &disabled}))
	coord, _, rec := newCoordinator(t, cfg, ingest.Options{})

	summary, err := coord.RunOnce(context.Background(), false)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(summary.Sources) != 0 || len(rec.Events()) != 0 {
		t.Fatalf("expected empty run, got %+v", summary)
	}
}
