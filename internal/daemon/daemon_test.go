package daemon_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"jobsieve/internal/config"
	"jobsieve/internal/daemon"
	"jobsieve/internal/ingest"
	"jobsieve/internal/integrity"
	"jobsieve/internal/logging"
	"jobsieve/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	coord := ingest.New(cfg, st, logger, ingest.Options{})
	mgr := integrity.NewManager(st, cfg, logger)
	d, err := daemon.New(cfg, coord, mgr, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	ctx := context.Background()

	if err := d.Start(ctx, false); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	names := make([]string, 0, len(status.Jobs))
	for _, job := range status.Jobs {
		names = append(names, job.Name)
		if job.Next.IsZero() {
			t.Fatalf("expected next activation for %s", job.Name)
		}
	}
	if got := strings.Join(names, ","); got != "ingest,full_check,backup,log_retention" {
		t.Fatalf("unexpected jobs %s", got)
	}

	if err := d.Start(ctx, false); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)
	ctx := context.Background()

	if err := first.Start(ctx, false); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(ctx, false)
	if err == nil || !strings.Contains(err.Error(), "another jobsieve daemon") {
		t.Fatalf("expected lock refusal, got %v", err)
	}

	first.Stop()
	if err := second.Start(ctx, false); err != nil {
		t.Fatalf("start after release: %v", err)
	}
}

func TestStartRunsIngestImmediately(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	if err := d.Start(context.Background(), true); err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for d.Status().LastRun == nil {
		if time.Now().After(deadline) {
			t.Fatal("expected an immediate ingest run")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status := d.Status(); status.LastErr != "" {
		t.Fatalf("unexpected run error %s", status.LastErr)
	}
}

func TestInvalidScheduleReleasesLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Integrity.FullCheckSchedule = "not a schedule"
	d := newDaemon(t, cfg)

	err := d.Start(context.Background(), false)
	if err == nil || !strings.Contains(err.Error(), "full_check") {
		t.Fatalf("expected schedule error, got %v", err)
	}

	cfg.Integrity.FullCheckSchedule = "@weekly"
	if err := d.Start(context.Background(), false); err != nil {
		t.Fatalf("Start after fixing schedule: %v", err)
	}
}
