package sources_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"

	"jobsieve/internal/config"
	"jobsieve/internal/logging"
	"jobsieve/internal/resilience"
	"jobsieve/internal/services"
	"jobsieve/internal/sources"
	"jobsieve/internal/testsupport"
)

func newClient(t *testing.T, cfg *config.Config) *sources.Client {
	t.Helper()
	return sources.NewClient(sources.ClientOptions{
		UserAgent:      "jobsieve-test",
		RequestTimeout: 5 * time.Second,
		Guards:         resilience.NewRegistry(cfg, logging.NewNop(), nil),
		Budget:         semaphore.NewWeighted(4),
		Logger:         logging.NewNop(),
	})
}

func htmlSource(url string) config.Source {
	return config.Source{
		ID:        "board",
		Kind:      "html",
		URL:       url,
		MaxPages:  3,
		PageParam: "page",
		Currency:  "USD",
		Selectors: config.Selectors{
			Item:        ".job",
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

func listingsPage(count, malformed int) string {
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for i := 1; i <= count; i++ {
		if i == malformed {
			fmt.Fprintf(&b, `<li class="job" data-id="job-%d"><span class="company">Acme</span><a class="link" href="/jobs/%d">view</a></li>`, i, i)
			continue
		}
		fmt.Fprintf(&b, `<li class="job" data-id="job-%d">
			<h2 class="title">Go Engineer %d</h2>
			<span class="company">Acme</span>
			<span class="location">Remote - US</span>
			<a class="link" href="/jobs/%d">view</a>
			<p class="summary">Build services in Go.</p>
			<span class="salary">$120,000 - $150,000</span>
			<time datetime="2026-04-0%dT10:00:00Z">recently</time>
		</li>`, i, i, i, 1+i%9)
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}

func TestHTMLAdapterIsolatesMalformedListing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, "<html><body><ul></ul></body></html>")
			return
		}
		fmt.Fprint(w, listingsPage(50, 23))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	adapter := sources.NewHTML(newClient(t, cfg))
	result, err := adapter.Fetch(context.Background(), htmlSource(server.URL+"/jobs"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(result.Pages) != 1 {
		t.Fatalf("expected one non-empty page, got %d", len(result.Pages))
	}
	if result.Postings() != 49 {
		t.Fatalf("expected 49 postings, got %d", result.Postings())
	}
	if result.ParseErrors() != 1 {
		t.Fatalf("expected 1 parse error, got %d", result.ParseErrors())
	}
	perr := result.Pages[0].ParseErrors[0]
	if perr.Index != 23 || !errors.Is(perr, services.ErrParse) {
		t.Fatalf("unexpected parse error %+v", perr)
	}

	first := result.Pages[0].Postings[0]
	if first.URL != server.URL+"/jobs/1" || first.SourceJobID != "job-1" {
		t.Fatalf("unexpected link/id: %q %q", first.URL, first.SourceJobID)
	}
	if !first.Remote || first.Company != "Acme" {
		t.Fatalf("unexpected fields %+v", first)
	}
	if first.SalaryMin == nil || *first.SalaryMin != 120000 || *first.SalaryMax != 150000 || first.SalaryCurrency != "USD" {
		t.Fatalf("unexpected salary %+v", first)
	}
	if first.PostedAt == nil || first.PostedAt.Day() != 2 {
		t.Fatalf("unexpected posted_at %v", first.PostedAt)
	}
}

func TestRobotsDisallowedPath(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/private/jobs", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	_, err := sources.NewHTML(newClient(t, cfg)).Fetch(context.Background(), htmlSource(server.URL+"/private/jobs"))
	if !errors.Is(err, services.ErrRobotsDisallowed) {
		t.Fatalf("expected robots error, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatal("disallowed path must not be requested")
	}

	src := htmlSource(server.URL + "/private/jobs")
	src.IgnoreRobots = true
	if _, err := sources.NewHTML(newClient(t, cfg)).Fetch(context.Background(), src); err != nil {
		t.Fatalf("ignore_robots fetch: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected one request with ignore_robots, got %d", hits.Load())
	}
}

// refusingTransport fails every request and counts attempts.
type refusingTransport struct {
	calls atomic.Int32
}

func (rt *refusingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	rt.calls.Add(1)
	return nil, errors.New("connection refused")
}

func refusingClient(cfg *config.Config, rt http.RoundTripper) *sources.Client {
	return sources.NewClient(sources.ClientOptions{
		UserAgent:      "jobsieve-test",
		RequestTimeout: time.Second,
		HTTPClient:     &http.Client{Transport: rt},
		Guards:         resilience.NewRegistry(cfg, logging.NewNop(), nil),
		Logger:         logging.NewNop(),
	})
}

func TestOpenBreakerSkipsRobotsLookup(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBreaker(1, 3600))
	rt := &refusingTransport{}
	adapter := sources.NewGreenhouse(refusingClient(cfg, rt))
	src := config.Source{ID: "down", Kind: "greenhouse", Board: "down", URL: "http://jobs.invalid/boards"}

	_, err := adapter.Fetch(context.Background(), src)
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if got := rt.calls.Load(); got != 2 {
		t.Fatalf("expected robots.txt and board requests, got %d", got)
	}

	_, err = adapter.Fetch(context.Background(), src)
	if !errors.Is(err, services.ErrCircuitOpen) {
		t.Fatalf("expected circuit open, got %v", err)
	}
	if got := rt.calls.Load(); got != 2 {
		t.Fatalf("open breaker must not touch the network, got %d requests", got)
	}
}

func TestUnreachableRobotsIsCachedAsAllow(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBreaker(5, 3600))
	cfg.Resilience.MaxRetries = 0
	rt := &refusingTransport{}
	adapter := sources.NewGreenhouse(refusingClient(cfg, rt))
	src := config.Source{ID: "flaky", Kind: "greenhouse", Board: "flaky", URL: "http://jobs.invalid/boards"}

	for i := 0; i < 2; i++ {
		if _, err := adapter.Fetch(context.Background(), src); !errors.Is(err, services.ErrNetwork) {
			t.Fatalf("fetch %d: expected network error, got %v", i+1, err)
		}
	}
	if got := rt.calls.Load(); got != 3 {
		t.Fatalf("expected one robots.txt request and two board requests, got %d", got)
	}
}

func TestRequestLogsCarryRunContext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/boards/acme/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jobs":[]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	cfg := testsupport.NewConfig(t)
	client := sources.NewClient(sources.ClientOptions{
		Guards: resilience.NewRegistry(cfg, logging.NewNop(), nil),
		Logger: logger,
	})
	src := config.Source{ID: "acme", Kind: "greenhouse", Board: "acme", URL: server.URL + "/boards"}
	ctx := services.WithRunID(services.WithSource(context.Background(), "acme"), "run-7")
	if _, err := sources.NewGreenhouse(client).Fetch(ctx, src); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	var found bool
	for _, raw := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var line map[string]any
		if err := json.Unmarshal(raw, &line); err != nil {
			t.Fatalf("decode log line %q: %v", raw, err)
		}
		if line["msg"] != "source request" || !strings.HasSuffix(fmt.Sprint(line["url"]), "/jobs?content=true") {
			continue
		}
		found = true
		if line[logging.FieldRunID] != "run-7" || line[logging.FieldSource] != "acme" {
			t.Fatalf("expected run context on request log, got %v", line)
		}
		if id, _ := line[logging.FieldCorrelationID].(string); id == "" {
			t.Fatalf("expected a correlation id, got %v", line)
		}
	}
	if !found {
		t.Fatalf("no request log line in:\n%s", buf.String())
	}
}

func TestHTMLAdapterDecodesLegacyCharset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		if r.URL.Query().Get("page") != "" {
			return
		}
		body := `<div class="job" data-id="1"><h2 class="title">D` + "\xe9" + `veloppeur Go</h2><a class="link" href="/j/1">x</a></div>`
		_, _ = w.Write([]byte(body))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	result, err := sources.NewHTML(newClient(t, cfg)).Fetch(context.Background(), htmlSource(server.URL+"/jobs"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := result.Pages[0].Postings[0].Title; got != "Développeur Go" {
		t.Fatalf("expected decoded title, got %q", got)
	}
}

func TestHTMLAdapterReturnsPagesBeforeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			cancel()
			<-r.Context().Done()
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, listingsPage(3, 0))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	result, err := sources.NewHTML(newClient(t, cfg)).Fetch(ctx, htmlSource(server.URL+"/jobs"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	var fetchErr *sources.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Page != 2 {
		t.Fatalf("expected FetchError for page 2, got %v", err)
	}
	if len(result.Pages) != 1 || result.Postings() != 3 {
		t.Fatalf("expected first page kept, got %d pages", len(result.Pages))
	}
}

func TestAdzunaPagesAndParseErrors(t *testing.T) {
	var requests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/api/us/search/", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Query().Get("app_id") != "id" || r.URL.Query().Get("what") != "golang" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		count := 50
		if strings.HasSuffix(r.URL.Path, "/2") {
			count = 10
		}
		items := make([]string, 0, count)
		for i := 0; i < count; i++ {
			if strings.HasSuffix(r.URL.Path, "/1") && i == 7 {
				items = append(items, `{"id":"bad","title":"Broken","salary_min":"lots"}`)
				continue
			}
			items = append(items, fmt.Sprintf(`{"id":"%s-%d","title":"Backend Engineer","redirect_url":"https://adzuna.example/%d",
				"description":"<b>Go</b> and SQL","created":"2026-04-01T08:00:00Z","salary_min":90000,"salary_max":110000,
				"company":{"display_name":"Acme"},"location":{"display_name":"Austin, TX"}}`, r.URL.Path, i, i))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"count":60,"results":[%s]}`, strings.Join(items, ","))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	src := config.Source{ID: "adzuna", Kind: "adzuna", URL: server.URL + "/api", Country: "us", Query: "golang",
		AppID: "id", AppKey: "key", MaxPages: 5}
	result, err := sources.NewAdzuna(newClient(t, cfg)).Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if requests.Load() != 2 || len(result.Pages) != 2 {
		t.Fatalf("expected two pages, got %d requests / %d pages", requests.Load(), len(result.Pages))
	}
	if result.Postings() != 59 || result.ParseErrors() != 1 {
		t.Fatalf("expected 59 postings and 1 parse error, got %d / %d", result.Postings(), result.ParseErrors())
	}
	p := result.Pages[0].Postings[0]
	if p.Description != "Go and SQL" || p.SalaryCurrency != "USD" || p.PostedAt == nil {
		t.Fatalf("unexpected posting %+v", p)
	}
}

func TestGreenhouseBoard(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/boards/acme/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("content") != "true" {
			http.Error(w, "content flag missing", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"jobs":[
			{"id":101,"title":"Platform Engineer","absolute_url":"https://boards.example/acme/101",
			 "updated_at":"2026-04-02T10:00:00-04:00","first_published":"2026-03-01T10:00:00Z",
			 "content":"&lt;p&gt;Run &lt;strong&gt;Kubernetes&lt;/strong&gt;&lt;/p&gt;","location":{"name":"Remote"}},
			{"id":102,"title":"","absolute_url":"https://boards.example/acme/102"}
		]}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	src := config.Source{ID: "gh", Kind: "greenhouse", Board: "acme", URL: server.URL + "/boards"}
	result, err := sources.NewGreenhouse(newClient(t, cfg)).Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if result.Postings() != 1 || result.ParseErrors() != 1 {
		t.Fatalf("expected 1 posting and 1 parse error, got %d / %d", result.Postings(), result.ParseErrors())
	}
	p := result.Pages[0].Postings[0]
	if p.SourceJobID != "101" || p.Company != "acme" || !p.Remote {
		t.Fatalf("unexpected posting %+v", p)
	}
	if p.Description != "Run Kubernetes" {
		t.Fatalf("expected stripped description, got %q", p.Description)
	}
	if p.EditedAt == nil || !p.EditedAt.Equal(time.Date(2026, 4, 2, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected edited_at %v", p.EditedAt)
	}
}

func TestServerErrorsAndThrottling(t *testing.T) {
	var calls atomic.Int32
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", http.NotFound)
	mux.HandleFunc("/boards/acme/jobs", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Resilience.MaxRetries = 1
	src := config.Source{ID: "gh", Kind: "greenhouse", Board: "acme", URL: server.URL + "/boards"}

	_, err := sources.NewGreenhouse(newClient(t, cfg)).Fetch(context.Background(), src)
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected network error for 503, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected one retry, got %d calls", calls.Load())
	}
	var statusErr *sources.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected StatusError, got %v", err)
	}

	calls.Store(0)
	status.Store(http.StatusTooManyRequests)
	_, err = sources.NewGreenhouse(newClient(t, cfg)).Fetch(context.Background(), src)
	if !errors.Is(err, services.ErrRateLimited) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	if services.ErrorKind(err) != "rate_limited" {
		t.Fatalf("unexpected kind %q", services.ErrorKind(err))
	}
}

func TestRegistryLookup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reg := sources.NewRegistry(newClient(t, cfg))
	if got := strings.Join(reg.Kinds(), ","); got != "adzuna,greenhouse,html" {
		t.Fatalf("unexpected kinds %q", got)
	}
	if _, err := reg.Lookup("ftp"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
