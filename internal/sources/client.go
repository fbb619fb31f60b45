package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/semaphore"

	"jobsieve/internal/config"
	"jobsieve/internal/logging"
	"jobsieve/internal/resilience"
	"jobsieve/internal/services"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxBodyBytes          = 8 << 20
)

// ClientOptions configures a Client.
type ClientOptions struct {
	UserAgent      string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
	Guards         *resilience.Registry
	Budget         *semaphore.Weighted
	Logger         *slog.Logger
}

// Client performs guarded GET requests on behalf of adapters.
type Client struct {
	userAgent string
	timeout   time.Duration
	http      *http.Client
	guards    *resilience.Registry
	budget    *semaphore.Weighted
	logger    *slog.Logger

	now      func() time.Time
	robotsMu sync.Mutex
	robots   map[string]robotsEntry
}

// NewClient builds a Client. Guards is required.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = "jobsieve"
	}
	return &Client{
		userAgent: userAgent,
		timeout:   timeout,
		http:      httpClient,
		guards:    opts.Guards,
		budget:    opts.Budget,
		logger:    logging.NewComponentLogger(opts.Logger, "sources"),
		now:       time.Now,
		robots:    make(map[string]robotsEntry),
	}
}

// StatusError is an HTTP response outside 2xx.
type StatusError struct {
	URL        string
	StatusCode int
	Retry      time.Duration
	marker     error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Unwrap exposes the services marker for classification.
func (e *StatusError) Unwrap() error { return e.marker }

// RetryAfter returns the server's Retry-After hint, if any.
func (e *StatusError) RetryAfter() time.Duration { return e.Retry }

// Response is a fully read, UTF-8 decoded response body.
type Response struct {
	URL         string
	ContentType string
	Body        []byte
}

// Get fetches rawURL for src through the source's guard. The robots.txt
// lookup runs inside the guard, so an open breaker short-circuits it too.
func (c *Client) Get(ctx context.Context, src config.Source, rawURL, accept string) (Response, error) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	var resp Response
	call := func(ctx context.Context) error {
		if !src.IgnoreRobots {
			if err := c.checkRobots(ctx, rawURL); err != nil {
				return err
			}
		}
		var err error
		resp, err = c.do(ctx, rawURL, accept)
		return err
	}
	if c.guards == nil {
		return resp, call(ctx)
	}
	err := c.guards.Guard(src).Do(ctx, call)
	return resp, err
}

func (c *Client) do(ctx context.Context, rawURL, accept string) (Response, error) {
	if c.budget != nil {
		if err := c.budget.Acquire(ctx, 1); err != nil {
			return Response{}, err
		}
		defer c.budget.Release(1)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Response{}, services.Wrap(services.ErrConfiguration, "sources", "build request", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	started := time.Now()
	httpResp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, services.Wrap(services.ErrNetwork, "sources", "GET", rawURL, err)
	}
	defer httpResp.Body.Close()
	logging.WithContext(ctx, c.logger).Debug("source request",
		logging.String("url", rawURL),
		logging.Int("status", httpResp.StatusCode),
		logging.Duration("duration", time.Since(started)),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, 4096))
		statusErr := &StatusError{URL: rawURL, StatusCode: httpResp.StatusCode, marker: services.ErrNetwork}
		if httpResp.StatusCode == http.StatusTooManyRequests {
			statusErr.marker = services.ErrRateLimited
			statusErr.Retry = parseRetryAfter(httpResp.Header.Get("Retry-After"), time.Now())
		}
		return Response{}, statusErr
	}

	contentType := httpResp.Header.Get("Content-Type")
	var body io.Reader = io.LimitReader(httpResp.Body, maxBodyBytes)
	if isHTML(contentType) {
		decoded, err := charset.NewReader(body, contentType)
		if err != nil {
			return Response{}, services.Wrap(services.ErrParse, "sources", "decode charset", rawURL, err)
		}
		body = decoded
	}
	data, err := io.ReadAll(body)
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, services.Wrap(services.ErrNetwork, "sources", "read body", rawURL, err)
	}
	return Response{URL: rawURL, ContentType: contentType, Body: data}, nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
