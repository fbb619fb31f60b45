package events

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"jobsieve/internal/config"
	"jobsieve/internal/logging"
)

const redisConnectTimeout = 5 * time.Second

// NewFromConfig builds a bus with the sinks enabled in cfg plus any extra
// sinks. An unreachable Redis is logged and skipped.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger, extra ...Sink) *Bus {
	var sinks []Sink
	if cfg.Events.Log {
		sinks = append(sinks, NewLogSink(logger))
	}
	if url := strings.TrimSpace(cfg.Events.RedisURL); url != "" {
		connectCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
		sink, err := NewRedisSink(connectCtx, url, cfg.Events.RedisChannel, logger)
		cancel()
		if err != nil {
			logging.WarnWithContext(logging.NewComponentLogger(logger, "events"), "redis event sink unavailable", "redis_unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check events.redis_url or JOBSIEVE_REDIS_URL"),
				logging.String(logging.FieldImpact, "events are not published to redis"),
			)
		} else {
			sinks = append(sinks, sink)
		}
	}
	sinks = append(sinks, extra...)
	return NewBus(logger, sinks...)
}
