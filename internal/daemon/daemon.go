package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"jobsieve/internal/config"
	"jobsieve/internal/ingest"
	"jobsieve/internal/integrity"
	"jobsieve/internal/logging"
)

// Job names used in schedules and status output.
const (
	JobIngest    = "ingest"
	JobFullCheck = "full_check"
	JobBackup    = "backup"
	JobLogPrune  = "log_retention"
)

const logPruneSchedule = "@daily"

// Daemon schedules ingestion and maintenance and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	coord     *ingest.Coordinator
	integrity *integrity.Manager
	logger    *slog.Logger
	base      *slog.Logger
	now       func() time.Time

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	lastRun *ingest.RunSummary
	lastErr error
	adhoc   sync.WaitGroup

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running  bool
	LockPath string
	Jobs     []JobStatus
	LastRun  *ingest.RunSummary
	LastErr  string
}

type scheduledJob struct {
	name     string
	schedule string
	run      func()
}

// JobStatus is one scheduled job.
type JobStatus struct {
	Name     string
	Schedule string
	Next     time.Time
	Prev     time.Time
}

// New constructs a daemon around an ingest coordinator and integrity manager.
func New(cfg *config.Config, coord *ingest.Coordinator, mgr *integrity.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || coord == nil || mgr == nil {
		return nil, errors.New("daemon requires config, coordinator, and integrity manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		coord:     coord,
		integrity: mgr,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		base:      logger,
		now:       time.Now,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, registers schedules, and starts the
// scheduler. When runNow is set an ingest run is triggered immediately.
func (d *Daemon) Start(ctx context.Context, runNow bool) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another jobsieve daemon holds %s", d.lockPath)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	c, entries, err := d.schedule(d.ctx)
	if err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx, d.cancel = nil, nil
		return err
	}

	d.mu.Lock()
	d.cron = c
	d.entries = entries
	d.mu.Unlock()

	c.Start()
	d.running.Store(true)
	d.logger.Info("jobsieve daemon started",
		logging.String("lock", d.lockPath),
		logging.String("ingest_schedule", d.cfg.Ingest.Schedule),
	)

	if runNow {
		// The wrapped job shares the SkipIfStillRunning guard with the schedule.
		job := c.Entry(entries[JobIngest]).WrappedJob
		d.adhoc.Go(job.Run)
	}
	return nil
}

func (d *Daemon) schedule(ctx context.Context) (*cron.Cron, map[string]cron.EntryID, error) {
	cronLogger := newCronLogger(d.base)
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	jobs := []scheduledJob{
		{JobIngest, d.cfg.Ingest.Schedule, func() { d.runIngest(ctx) }},
		{JobFullCheck, d.cfg.Integrity.FullCheckSchedule, func() { d.runFullCheck(ctx) }},
		{JobLogPrune, logPruneSchedule, d.pruneLogs},
	}
	if d.cfg.Backup.Enabled {
		jobs = append(jobs, scheduledJob{JobBackup, d.cfg.Backup.Schedule, func() { d.runBackup(ctx) }})
	}

	entries := make(map[string]cron.EntryID, len(jobs))
	for _, job := range jobs {
		id, err := c.AddFunc(job.schedule, job.run)
		if err != nil {
			return nil, nil, fmt.Errorf("schedule %s %q: %w", job.name, job.schedule, err)
		}
		entries[job.name] = id
	}
	return c, entries, nil
}

// Stop soft-stops the in-flight run, waits for scheduled jobs to return, and
// releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Lock()
	c := d.cron
	d.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	d.adhoc.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("jobsieve daemon stopped")
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := Status{Running: d.running.Load(), LockPath: d.lockPath, LastRun: d.lastRun}
	if d.lastErr != nil {
		status.LastErr = d.lastErr.Error()
	}
	if d.cron == nil {
		return status
	}
	schedules := map[string]string{
		JobIngest:    d.cfg.Ingest.Schedule,
		JobFullCheck: d.cfg.Integrity.FullCheckSchedule,
		JobBackup:    d.cfg.Backup.Schedule,
		JobLogPrune:  logPruneSchedule,
	}
	for _, name := range []string{JobIngest, JobFullCheck, JobBackup, JobLogPrune} {
		id, ok := d.entries[name]
		if !ok {
			continue
		}
		entry := d.cron.Entry(id)
		status.Jobs = append(status.Jobs, JobStatus{Name: name, Schedule: schedules[name], Next: entry.Next, Prev: entry.Prev})
	}
	return status
}

func (d *Daemon) runIngest(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := d.coord.RunOnce(ctx, false)

	d.mu.Lock()
	d.lastRun = &summary
	d.lastErr = err
	d.mu.Unlock()

	if err != nil {
		logging.ErrorWithContext(d.logger, "scheduled run failed", "scheduled_run_failed",
			logging.String(logging.FieldRunID, summary.RunID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run jobsieve check --full"),
		)
	}
}

func (d *Daemon) runFullCheck(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := d.integrity.FullCheck(ctx); err != nil {
		logging.ErrorWithContext(d.logger, "scheduled integrity check failed", "scheduled_check_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "restore a snapshot with jobsieve restore <backup>"),
			logging.String(logging.FieldImpact, "ingestion is refused until the database is restored"),
		)
	}
	if _, err := d.integrity.PruneRecords(ctx); err != nil {
		logging.WarnWithContext(d.logger, "record pruning failed", "record_prune_failed", logging.Error(err))
	}
}

func (d *Daemon) runBackup(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := d.integrity.Backup(ctx); err != nil {
		logging.ErrorWithContext(d.logger, "scheduled backup failed", "scheduled_backup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on backup_dir"),
		)
		return
	}
	if _, err := d.integrity.PruneRecords(ctx); err != nil {
		logging.WarnWithContext(d.logger, "record pruning failed", "record_prune_failed", logging.Error(err))
	}
}

func (d *Daemon) pruneLogs() {
	dir := d.cfg.Paths.LogDir
	removed := logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, d.now(), logging.RetentionTarget{
		Dir:     dir,
		Pattern: "*.log*",
		Exclude: []string{filepath.Join(dir, logging.LogFileName)},
	})
	if removed > 0 {
		d.logger.Info("old logs pruned", logging.Int("removed", removed))
	}
}
