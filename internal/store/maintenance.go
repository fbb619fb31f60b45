package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"jobsieve/internal/services"
)

const maxCheckMessages = 20

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// QuickCheckFile runs PRAGMA quick_check against path over a read-only
// connection. A file SQLite cannot read at all is reported as a failed check
// rather than an error; the error return is reserved for cancellation.
func QuickCheckFile(ctx context.Context, path string) (IntegrityCheck, error) {
	start := time.Now()
	check := IntegrityCheck{Type: CheckQuick, CheckedAt: start.UTC()}

	db, err := sql.Open("sqlite", readOnlyDSN(path))
	if err != nil {
		return check, fmt.Errorf("open read-only connection: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	messages, err := pragmaMessages(ctx, db, "PRAGMA quick_check")
	check.Duration = time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return check, ctxErr
		}
		check.Status = CheckFailed
		check.Detail = err.Error()
		return check, nil
	}
	check.Status, check.Detail = statusFromMessages(messages)
	return check, nil
}

// QuickCheck runs PRAGMA quick_check on the open database.
func (s *Store) QuickCheck(ctx context.Context) (IntegrityCheck, error) {
	return s.runCheck(ctx, CheckQuick, "PRAGMA quick_check")
}

// IntegrityCheck runs the exhaustive PRAGMA integrity_check.
func (s *Store) IntegrityCheck(ctx context.Context) (IntegrityCheck, error) {
	return s.runCheck(ctx, CheckFull, "PRAGMA integrity_check")
}

// ForeignKeyCheck reports rows whose foreign keys point at missing parents.
// Violations are a warning: the file is sound but references are orphaned.
func (s *Store) ForeignKeyCheck(ctx context.Context) (IntegrityCheck, error) {
	start := time.Now()
	check := IntegrityCheck{Type: CheckForeignKey, CheckedAt: s.now().UTC()}

	rows, err := s.db.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return check, fmt.Errorf("foreign key check: %w", err)
	}
	defer rows.Close()

	var violations []string
	for rows.Next() {
		var (
			table  string
			rowID  sql.NullInt64
			parent string
			fkID   int
		)
		if err := rows.Scan(&table, &rowID, &parent, &fkID); err != nil {
			return check, fmt.Errorf("scan foreign key violation: %w", err)
		}
		if len(violations) < maxCheckMessages {
			violations = append(violations, fmt.Sprintf("%s row %d -> %s", table, rowID.Int64, parent))
		}
	}
	if err := rows.Err(); err != nil {
		return check, fmt.Errorf("iterate foreign key check: %w", err)
	}
	check.Duration = time.Since(start)
	if len(violations) == 0 {
		check.Status = CheckPassed
		check.Detail = "ok"
	} else {
		check.Status = CheckWarning
		check.Detail = strings.Join(violations, "; ")
	}
	return check, nil
}

func (s *Store) runCheck(ctx context.Context, kind CheckType, pragma string) (IntegrityCheck, error) {
	start := time.Now()
	check := IntegrityCheck{Type: kind, CheckedAt: s.now().UTC()}
	messages, err := pragmaMessages(ctx, s.db, pragma)
	check.Duration = time.Since(start)
	if err != nil {
		return check, fmt.Errorf("%s: %w", strings.ToLower(pragma), err)
	}
	check.Status, check.Detail = statusFromMessages(messages)
	return check, nil
}

func pragmaMessages(ctx context.Context, q queryer, pragma string) ([]string, error) {
	rows, err := q.QueryContext(ctx, pragma)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var msg string
		if err := rows.Scan(&msg); err != nil {
			return nil, err
		}
		if len(messages) < maxCheckMessages {
			messages = append(messages, msg)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func statusFromMessages(messages []string) (CheckStatus, string) {
	if len(messages) == 1 && strings.EqualFold(strings.TrimSpace(messages[0]), "ok") {
		return CheckPassed, "ok"
	}
	if len(messages) == 0 {
		return CheckFailed, "check returned no rows"
	}
	return CheckFailed, strings.Join(messages, "; ")
}

// VacuumInto writes a compacted, consistent copy of the database to dest.
// It runs outside the writer mutex; WAL readers and the writer continue.
func (s *Store) VacuumInto(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("vacuum into %s: destination exists", dest)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat backup destination: %w", err)
	}
	if err := ensureDir(dest); err != nil {
		return fmt.Errorf("ensure backup directory: %w", err)
	}
	err := retryOnBusy(ctx, "vacuum into", func() error {
		_, execErr := s.db.ExecContext(ctx, "VACUUM INTO ?", dest)
		return execErr
	})
	if err != nil {
		_ = os.Remove(dest)
		if errors.Is(err, services.ErrWriteContention) {
			return err
		}
		return fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	return nil
}
