package events

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"jobsieve/internal/logging"
)

// stalledServer accepts connections and never answers.
func stalledServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return ln.Addr().String()
}

func TestRedisSinkDoesNotBlockOnStalledServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:             stalledServer(t),
		DisableIndentity: true,
		Protocol:         2,
		MaxRetries:       -1,
	})
	sink := newRedisSink(client, "jobsieve.events", logging.NewNop(), 2, 100*time.Millisecond)

	start := time.Now()
	var dropped int
	for i := 0; i < 10; i++ {
		if err := sink.Publish(context.Background(), Event{Type: NewJob, JobID: int64(i + 1)}); err != nil {
			dropped++
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("publishing waited on redis for %s", elapsed)
	}
	if dropped == 0 {
		t.Fatal("expected a full queue to drop events")
	}

	closed := make(chan error, 1)
	go func() { closed <- sink.Close() }()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return against a stalled server")
	}
	if err := sink.Publish(context.Background(), Event{Type: NewJob}); err == nil {
		t.Fatal("expected publish after close to fail")
	}
}
