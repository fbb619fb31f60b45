package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/temoto/robotstxt"

	"jobsieve/internal/logging"
	"jobsieve/internal/services"
)

// unreachableRobotsTTL is how long an unreachable robots.txt is treated as
// allow-all before it is fetched again.
const unreachableRobotsTTL = 10 * time.Minute

// robotsEntry is a cached policy. A nil data allows everything until expires.
type robotsEntry struct {
	data    *robotstxt.RobotsData
	expires time.Time
}

// checkRobots consults the host's robots.txt, cached for the life of the
// client. An unreachable robots.txt allows requests for unreachableRobotsTTL.
func (c *Client) checkRobots(ctx context.Context, rawURL string) error {
	target, err := url.Parse(rawURL)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "sources", "parse url", rawURL, err)
	}
	host := target.Scheme + "://" + target.Host

	data, err := c.robotsFor(ctx, host)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.robotsMu.Lock()
		c.robots[host] = robotsEntry{expires: c.now().Add(unreachableRobotsTTL)}
		c.robotsMu.Unlock()
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "robots.txt unavailable; allowing request", "robots_unavailable",
			logging.String("host", host),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the host is reachable"),
			logging.String(logging.FieldImpact, "request proceeds without a robots policy"),
		)
		return nil
	}
	if data == nil {
		return nil
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	if !data.TestAgent(path, c.userAgent) {
		return services.Wrap(services.ErrRobotsDisallowed, "sources", "robots", fmt.Sprintf("%s disallows %s", host, path), nil)
	}
	return nil
}

func (c *Client) robotsFor(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	c.robotsMu.Lock()
	entry, ok := c.robots[host]
	c.robotsMu.Unlock()
	if ok && (entry.data != nil || c.now().Before(entry.expires)) {
		return entry.data, nil
	}

	if c.budget != nil {
		if err := c.budget.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer c.budget.Release(1)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, host+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil, err
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, err
	}

	c.robotsMu.Lock()
	c.robots[host] = robotsEntry{data: data}
	c.robotsMu.Unlock()
	return data, nil
}
