package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"jobsieve/internal/logging"
)

const (
	redisQueueSize      = 256
	redisPublishTimeout = 2 * time.Second
)

// RedisSink publishes JSON-encoded events to a Redis pub/sub channel from a
// background goroutine. Publish never waits on Redis; a full queue drops the
// event and reports it.
type RedisSink struct {
	client  *redis.Client
	channel string
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan []byte
	done   chan struct{}
}

// NewRedisSink parses redisURL and verifies connectivity.
func NewRedisSink(ctx context.Context, redisURL, channel string, logger *slog.Logger) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisSink(client, channel, logger, redisQueueSize, redisPublishTimeout), nil
}

func newRedisSink(client *redis.Client, channel string, logger *slog.Logger, size int, timeout time.Duration) *RedisSink {
	s := &RedisSink{
		client:  client,
		channel: channel,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "events"),
		queue:   make(chan []byte, size),
		done:    make(chan struct{}),
	}
	go s.drain()
	return s
}

func (s *RedisSink) drain() {
	defer close(s.done)
	for payload := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.client.Publish(ctx, s.channel, payload).Err()
		cancel()
		if err != nil {
			logging.WarnWithContext(s.logger, "redis publish failed", "event_publish_failed",
				logging.String("channel", s.channel),
				logging.Error(err),
				logging.String(logging.FieldImpact, "event not delivered to redis"),
			)
		}
	}
}

// Publish encodes ev and queues it for delivery.
func (s *RedisSink) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("redis sink closed; dropped %s event", ev.Type)
	}
	select {
	case s.queue <- payload:
		return nil
	default:
		return fmt.Errorf("redis queue full; dropped %s event", ev.Type)
	}
}

// Close delivers queued events for at most one publish timeout, then closes
// the client, failing whatever is still pending.
func (s *RedisSink) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-s.done:
		return s.client.Close()
	case <-timer.C:
	}
	err := s.client.Close()
	<-s.done
	return err
}
