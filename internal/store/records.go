package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordCheck appends an integrity check record.
func (s *Store) RecordCheck(ctx context.Context, check IntegrityCheck) (int64, error) {
	if check.CheckedAt.IsZero() {
		check.CheckedAt = s.now()
	}
	res, err := s.exec(ctx, "record integrity check",
		`INSERT INTO integrity_checks (check_type, status, duration_ms, detail, checked_at) VALUES (?, ?, ?, ?, ?)`,
		string(check.Type), string(check.Status), check.Duration.Milliseconds(), nullableString(check.Detail), formatTime(check.CheckedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("record integrity check: %w", err)
	}
	return res.LastInsertId()
}

// RecentChecks returns the latest integrity check records, newest first.
func (s *Store) RecentChecks(ctx context.Context, limit int) ([]IntegrityCheck, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, check_type, status, duration_ms, detail, checked_at FROM integrity_checks ORDER BY id DESC LIMIT ?`,
		normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query integrity checks: %w", err)
	}
	defer rows.Close()

	var out []IntegrityCheck
	for rows.Next() {
		var (
			rec        IntegrityCheck
			checkType  string
			status     string
			durationMS int64
			detail     sql.NullString
			checkedRaw string
		)
		if err := rows.Scan(&rec.ID, &checkType, &status, &durationMS, &detail, &checkedRaw); err != nil {
			return nil, fmt.Errorf("scan integrity check: %w", err)
		}
		rec.Type = CheckType(checkType)
		rec.Status = CheckStatus(status)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.Detail = detail.String
		rec.CheckedAt, _ = parseTimeString(checkedRaw)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordBackup appends a backup record.
func (s *Store) RecordBackup(ctx context.Context, rec BackupRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	res, err := s.exec(ctx, "record backup",
		`INSERT INTO backups (path, size_bytes, success, error_message, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Path, rec.SizeBytes, boolToInt(rec.Success), nullableString(rec.ErrorMessage), formatTime(rec.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("record backup: %w", err)
	}
	return res.LastInsertId()
}

// ListBackups returns the latest backup records, newest first.
func (s *Store) ListBackups(ctx context.Context, limit int) ([]BackupRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, size_bytes, success, error_message, created_at FROM backups ORDER BY id DESC LIMIT ?`,
		normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query backups: %w", err)
	}
	defer rows.Close()

	var out []BackupRecord
	for rows.Next() {
		var (
			rec        BackupRecord
			success    int
			errMsg     sql.NullString
			createdRaw string
		)
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.SizeBytes, &success, &errMsg, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		rec.Success = success != 0
		rec.ErrorMessage = errMsg.String
		rec.CreatedAt, _ = parseTimeString(createdRaw)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordScrapeRun appends the per-source outcome of a run.
func (s *Store) RecordScrapeRun(ctx context.Context, run ScrapeRun) (int64, error) {
	if run.StartedAt.IsZero() {
		run.StartedAt = s.now()
	}
	res, err := s.exec(ctx, "record scrape run",
		`INSERT INTO scrape_runs (run_id, source, fetched, new_jobs, updated_jobs, errors, duration_ms, error_message, breaker_state, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, run.Fetched, run.New, run.Updated, run.Errors, run.Duration.Milliseconds(),
		nullableString(run.ErrorMessage), nullableString(run.BreakerState), formatTime(run.StartedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("record scrape run: %w", err)
	}
	return res.LastInsertId()
}

// RecentScrapeRuns returns the latest per-source run records, newest first.
func (s *Store) RecentScrapeRuns(ctx context.Context, limit int) ([]ScrapeRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, source, fetched, new_jobs, updated_jobs, errors, duration_ms, error_message, breaker_state, started_at
		 FROM scrape_runs ORDER BY id DESC LIMIT ?`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query scrape runs: %w", err)
	}
	defer rows.Close()

	var out []ScrapeRun
	for rows.Next() {
		var (
			run        ScrapeRun
			durationMS int64
			errMsg     sql.NullString
			breaker    sql.NullString
			startedRaw string
		)
		if err := rows.Scan(&run.ID, &run.RunID, &run.Source, &run.Fetched, &run.New, &run.Updated, &run.Errors,
			&durationMS, &errMsg, &breaker, &startedRaw); err != nil {
			return nil, fmt.Errorf("scan scrape run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.ErrorMessage = errMsg.String
		run.BreakerState = breaker.String
		run.StartedAt, _ = parseTimeString(startedRaw)
		out = append(out, run)
	}
	return out, rows.Err()
}

// PruneRecords keeps the newest keep rows of each append-only record table
// and returns how many rows were removed.
func (s *Store) PruneRecords(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("prune records: keep must be >= 1, got %d", keep)
	}
	var removed int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		removed = 0
		for _, table := range []string{"integrity_checks", "backups", "scrape_runs"} {
			res, err := tx.tx.ExecContext(ctx,
				"DELETE FROM "+table+" WHERE id NOT IN (SELECT id FROM "+table+" ORDER BY id DESC LIMIT ?)", keep)
			if err != nil {
				return fmt.Errorf("prune %s: %w", table, err)
			}
			n, _ := res.RowsAffected()
			removed += n
		}
		return nil
	})
	return removed, err
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}
