package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"jobsieve/internal/logging"
	"jobsieve/internal/services"
)

// RetryAfterHint is implemented by errors that carry a server-provided delay.
type RetryAfterHint interface {
	RetryAfter() time.Duration
}

// Guard wraps calls to one source with rate limiting, backoff, and a
// circuit breaker.
type Guard struct {
	source   string
	settings Settings
	limiter  *rate.Limiter
	breaker  *Breaker
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewGuard builds a Guard for source.
func NewGuard(source string, settings Settings, logger *slog.Logger, now func() time.Time) *Guard {
	settings = settings.withDefaults()
	perSecond := rate.Limit(settings.RequestsPerMinute / 60)
	return &Guard{
		source:   source,
		settings: settings,
		limiter:  rate.NewLimiter(perSecond, settings.Burst),
		breaker:  NewBreaker(source, settings, logger, now),
		logger:   logging.NewComponentLogger(logger, "guard"),
		sleep:    sleepContext,
	}
}

// Breaker exposes the guard's circuit breaker.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}

// Do runs fn under the guard. Throttling (services.ErrRateLimited) and
// network failures (services.ErrNetwork) are retried with jittered
// exponential backoff up to MaxRetries. Only network failures count toward
// the breaker; cancellation by the caller is neutral.
func (g *Guard) Do(ctx context.Context, fn func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		ticket, err := g.breaker.Allow()
		if err != nil {
			return err
		}
		if err := g.limiter.Wait(ctx); err != nil {
			g.breaker.RecordNeutral(ticket)
			return err
		}

		err = fn(ctx)
		if err == nil {
			g.breaker.RecordSuccess(ticket)
			return nil
		}

		switch {
		case ctx.Err() != nil:
			g.breaker.RecordNeutral(ticket)
			return err
		case errors.Is(err, services.ErrRateLimited):
			g.breaker.RecordNeutral(ticket)
		case errors.Is(err, services.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
			g.breaker.RecordFailure(ticket)
			if g.breaker.State() == StateOpen {
				return err
			}
		default:
			g.breaker.RecordNeutral(ticket)
			return err
		}

		if attempt >= g.settings.MaxRetries {
			return err
		}
		delay := g.backoff(attempt, err)
		g.logger.Debug("retrying source request",
			logging.String(logging.FieldSource, g.source),
			logging.Int("attempt", attempt+1),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
			return err
		}
	}
}

// backoff returns base*2^attempt capped at max, with jitter in [d/2, d]. A
// server Retry-After hint is honored when larger, still capped at max.
func (g *Guard) backoff(attempt int, err error) time.Duration {
	d := g.settings.BackoffBase << attempt
	if d <= 0 || d > g.settings.BackoffMax {
		d = g.settings.BackoffMax
	}
	half := d / 2
	if half > 0 {
		d = half + rand.N(half+1)
	}
	var hint RetryAfterHint
	if errors.As(err, &hint) {
		if ra := hint.RetryAfter(); ra > d {
			d = min(ra, g.settings.BackoffMax)
		}
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
