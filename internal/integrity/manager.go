package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"jobsieve/internal/config"
	"jobsieve/internal/logging"
	"jobsieve/internal/services"
	"jobsieve/internal/store"
)

// Manager runs integrity checks and snapshots against an open store.
type Manager struct {
	store     *store.Store
	backupDir string
	retention int
	keepRecs  int
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager builds a Manager for st using the backup and integrity settings
// in cfg.
func NewManager(st *store.Store, cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		store:     st,
		backupDir: cfg.Paths.BackupDir,
		retention: cfg.Backup.Retention,
		keepRecs:  cfg.Integrity.RecordRetention,
		logger:    logging.NewComponentLogger(logger, "integrity"),
		now:       time.Now,
	}
}

// Startup records the quick check store.Open ran before migrations. A failed
// check yields services.ErrIntegrity.
func (m *Manager) Startup(ctx context.Context) (store.IntegrityCheck, error) {
	check := m.store.StartupCheck()
	if check.Type == "" {
		check.Type = store.CheckQuick
		check.Status = store.CheckPassed
		check.CheckedAt = m.now().UTC()
	}
	if _, err := m.store.RecordCheck(ctx, check); err != nil {
		return check, fmt.Errorf("record startup check: %w", err)
	}
	if check.Status == store.CheckFailed {
		return check, services.Wrap(services.ErrIntegrity, "integrity", "startup check", check.Detail, nil)
	}
	return check, nil
}

// FullCheck runs integrity_check and foreign_key_check and records both.
// Only a failed integrity_check is reported as services.ErrIntegrity;
// orphaned references are recorded as a warning.
func (m *Manager) FullCheck(ctx context.Context) ([]store.IntegrityCheck, error) {
	full, err := m.store.IntegrityCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	fk, err := m.store.ForeignKeyCheck(ctx)
	if err != nil {
		return nil, fmt.Errorf("foreign key check: %w", err)
	}
	checks := []store.IntegrityCheck{full, fk}
	for i := range checks {
		id, err := m.store.RecordCheck(ctx, checks[i])
		if err != nil {
			return checks, fmt.Errorf("record %s check: %w", checks[i].Type, err)
		}
		checks[i].ID = id
		m.logCheck(checks[i])
	}
	if full.Status == store.CheckFailed {
		return checks, services.Wrap(services.ErrIntegrity, "integrity", "full check",
			full.Detail+"; restore a snapshot with `jobsieve restore <backup>`", nil)
	}
	return checks, nil
}

func (m *Manager) logCheck(check store.IntegrityCheck) {
	attrs := []logging.Attr{
		logging.String("check_type", string(check.Type)),
		logging.String("status", string(check.Status)),
		logging.Duration("duration", check.Duration),
	}
	switch check.Status {
	case store.CheckPassed:
		m.logger.Info("integrity check passed", logging.Args(attrs...)...)
	case store.CheckWarning:
		logging.WarnWithContext(m.logger, "integrity check reported warnings", "integrity_warning",
			append(attrs,
				logging.String("detail", check.Detail),
				logging.String(logging.FieldErrorHint, "inspect rows referencing deleted jobs"),
				logging.String(logging.FieldImpact, "database is readable; some references are orphaned"),
			)...)
	default:
		logging.ErrorWithContext(m.logger, "integrity check failed", "integrity_failed",
			append(attrs,
				logging.String("detail", check.Detail),
				logging.String(logging.FieldErrorHint, "stop the daemon and run jobsieve restore <backup>"),
			)...)
	}
}

// Backup snapshots the database into the backup directory, verifies the
// snapshot, records the attempt, and prunes old snapshots.
func (m *Manager) Backup(ctx context.Context) (store.BackupRecord, error) {
	rec, err := m.snapshot(ctx)
	rec.Success = err == nil
	if err != nil {
		rec.ErrorMessage = err.Error()
	}
	if id, recErr := m.store.RecordBackup(ctx, rec); recErr != nil {
		if err == nil {
			err = fmt.Errorf("record backup: %w", recErr)
		}
	} else {
		rec.ID = id
	}
	if err != nil {
		logging.ErrorWithContext(m.logger, "backup failed", "backup_failed",
			logging.String("path", rec.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions on the backup directory"),
		)
		return rec, err
	}

	m.logger.Info("backup written",
		logging.String("path", rec.Path),
		logging.Int64("size_bytes", rec.SizeBytes),
	)
	if removed, pruneErr := m.pruneSnapshots(); pruneErr != nil {
		logging.WarnWithContext(m.logger, "snapshot pruning failed", "backup_prune_failed",
			logging.Error(pruneErr),
			logging.String(logging.FieldImpact, "old snapshots remain on disk"),
		)
	} else if removed > 0 {
		m.logger.Info("old snapshots pruned", logging.Int("removed", removed))
	}
	return rec, nil
}

func (m *Manager) snapshot(ctx context.Context) (store.BackupRecord, error) {
	now := m.now().UTC()
	rec := store.BackupRecord{CreatedAt: now}
	if err := os.MkdirAll(m.backupDir, 0o755); err != nil {
		return rec, services.Wrap(services.ErrConfiguration, "integrity", "backup", "create backup directory", err)
	}
	if err := unix.Access(m.backupDir, unix.W_OK); err != nil {
		return rec, services.Wrap(services.ErrConfiguration, "integrity", "backup",
			fmt.Sprintf("backup directory %s is not writable", m.backupDir), err)
	}

	rec.Path = nextSnapshotPath(m.backupDir, now)
	if err := m.store.VacuumInto(ctx, rec.Path); err != nil {
		return rec, err
	}
	check, err := store.QuickCheckFile(ctx, rec.Path)
	if err != nil {
		_ = os.Remove(rec.Path)
		return rec, err
	}
	if check.Status != store.CheckPassed {
		_ = os.Remove(rec.Path)
		return rec, services.Wrap(services.ErrIntegrity, "integrity", "verify snapshot", check.Detail, nil)
	}
	info, err := os.Stat(rec.Path)
	if err != nil {
		return rec, fmt.Errorf("stat snapshot: %w", err)
	}
	rec.SizeBytes = info.Size()
	return rec, nil
}

func (m *Manager) pruneSnapshots() (int, error) {
	if m.retention <= 0 {
		return 0, nil
	}
	snapshots, err := ListSnapshots(m.backupDir)
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, snap := range snapshots[min(m.retention, len(snapshots)):] {
		if err := os.Remove(snap.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// PruneRecords trims check, backup, and run records to the configured
// retention.
func (m *Manager) PruneRecords(ctx context.Context) (int64, error) {
	removed, err := m.store.PruneRecords(ctx, m.keepRecs)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.logger.Debug("records pruned", logging.Int64("removed", removed))
	}
	return removed, nil
}
