package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tx is a write transaction handed out by Store.WithTx.
type Tx struct {
	tx  *sql.Tx
	now func() time.Time
}

// FindByHash returns the job with the given content hash, or nil.
func (t *Tx) FindByHash(ctx context.Context, hash string) (*Job, error) {
	return findByHash(ctx, t.tx, hash)
}

// AllJobs returns every job visible to the transaction in id order.
func (t *Tx) AllJobs(ctx context.Context) ([]*Job, error) {
	return queryJobs(ctx, t.tx, "SELECT "+jobColumns+" FROM jobs ORDER BY id")
}

// Upsert inserts a new job for an unseen hash or records a re-sighting of an
// existing one. Re-sightings advance last_seen_at, increment times_seen, and
// widen max_gap_seconds. Mutable fields change only when the source signals
// an edit.
func (t *Tx) Upsert(ctx context.Context, s Sighting) (UpsertResult, error) {
	if strings.TrimSpace(s.ContentHash) == "" {
		return UpsertResult{}, errors.New("upsert: content hash is required")
	}
	seenAt := s.SeenAt
	if seenAt.IsZero() {
		seenAt = t.now()
	}
	seenAt = seenAt.UTC()

	existing, err := findByHash(ctx, t.tx, s.ContentHash)
	if err != nil {
		return UpsertResult{}, err
	}
	if existing == nil {
		job, err := t.insert(ctx, s, seenAt)
		if err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Job: job, Created: true}, nil
	}

	changed := applyMutable(existing, s)
	if gap := int64(seenAt.Sub(existing.LastSeenAt) / time.Second); gap > existing.MaxGapSeconds {
		existing.MaxGapSeconds = gap
	}
	if seenAt.After(existing.LastSeenAt) {
		existing.LastSeenAt = seenAt
	}
	existing.TimesSeen++
	existing.UpdatedAt = seenAt

	_, err = t.tx.ExecContext(ctx, `UPDATE jobs SET
		location = ?, description = ?, salary_min = ?, salary_max = ?, salary_currency = ?,
		remote = ?, posted_at = ?, source_edited_at = ?, updated_at = ?, last_seen_at = ?,
		times_seen = ?, max_gap_seconds = ?
		WHERE id = ?`,
		nullableString(existing.Location),
		nullableString(existing.Description),
		nullableFloat(existing.SalaryMin),
		nullableFloat(existing.SalaryMax),
		nullableString(existing.SalaryCurrency),
		boolToInt(existing.Remote),
		nullableTime(existing.PostedAt),
		nullableTime(existing.SourceEditedAt),
		formatTime(existing.UpdatedAt),
		formatTime(existing.LastSeenAt),
		existing.TimesSeen,
		existing.MaxGapSeconds,
		existing.ID,
	)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("update job %d: %w", existing.ID, err)
	}
	return UpsertResult{Job: existing, ChangedFields: changed}, nil
}

func (t *Tx) insert(ctx context.Context, s Sighting, seenAt time.Time) (*Job, error) {
	job := &Job{
		ContentHash:     s.ContentHash,
		Source:          s.Source,
		SourceJobID:     s.SourceJobID,
		URL:             s.URL,
		Title:           s.Title,
		Company:         s.Company,
		Location:        s.Location,
		Description:     s.Description,
		SalaryMin:       s.SalaryMin,
		SalaryMax:       s.SalaryMax,
		SalaryCurrency:  s.SalaryCurrency,
		Remote:          s.Remote,
		PostedAt:        s.PostedAt,
		SourceEditedAt:  s.EditedAt,
		FactorBreakdown: "[]",
		CreatedAt:       seenAt,
		UpdatedAt:       seenAt,
		LastSeenAt:      seenAt,
		TimesSeen:       1,
	}
	res, err := t.tx.ExecContext(ctx, `INSERT INTO jobs (
		content_hash, source, source_job_id, url, title, company, location, description,
		salary_min, salary_max, salary_currency, remote, posted_at, source_edited_at,
		factor_breakdown, created_at, updated_at, last_seen_at, times_seen, max_gap_seconds
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, 0)`,
		job.ContentHash,
		job.Source,
		nullableString(job.SourceJobID),
		nullableString(job.URL),
		job.Title,
		nullableString(job.Company),
		nullableString(job.Location),
		nullableString(job.Description),
		nullableFloat(job.SalaryMin),
		nullableFloat(job.SalaryMax),
		nullableString(job.SalaryCurrency),
		boolToInt(job.Remote),
		nullableTime(job.PostedAt),
		nullableTime(job.SourceEditedAt),
		job.FactorBreakdown,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
		formatTime(job.LastSeenAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	if job.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("insert job id: %w", err)
	}
	return job, nil
}

// applyMutable copies mutable fields from s onto job and returns the names
// of the fields that changed. With an edit timestamp the newer edit wins
// wholesale; without one, only non-empty differing values are taken.
func applyMutable(job *Job, s Sighting) []string {
	var changed []string
	if s.EditedAt != nil {
		if job.SourceEditedAt != nil && !s.EditedAt.After(*job.SourceEditedAt) {
			return nil
		}
		edited := s.EditedAt.UTC()
		job.SourceEditedAt = &edited
		if job.Location != s.Location {
			job.Location = s.Location
			changed = append(changed, "location")
		}
		if job.Description != s.Description {
			job.Description = s.Description
			changed = append(changed, "description")
		}
		if !sameSalary(job, s) {
			job.SalaryMin, job.SalaryMax, job.SalaryCurrency = s.SalaryMin, s.SalaryMax, s.SalaryCurrency
			changed = append(changed, "salary")
		}
		if job.Remote != s.Remote {
			job.Remote = s.Remote
			changed = append(changed, "remote")
		}
	} else {
		if s.Location != "" && job.Location != s.Location {
			job.Location = s.Location
			changed = append(changed, "location")
		}
		if s.Description != "" && job.Description != s.Description {
			job.Description = s.Description
			changed = append(changed, "description")
		}
		if (s.SalaryMin != nil || s.SalaryMax != nil) && !sameSalary(job, s) {
			job.SalaryMin, job.SalaryMax, job.SalaryCurrency = s.SalaryMin, s.SalaryMax, s.SalaryCurrency
			changed = append(changed, "salary")
		}
		if s.Remote && !job.Remote {
			job.Remote = true
			changed = append(changed, "remote")
		}
	}
	if job.PostedAt == nil && s.PostedAt != nil {
		posted := s.PostedAt.UTC()
		job.PostedAt = &posted
	}
	return changed
}

func sameSalary(job *Job, s Sighting) bool {
	return floatPtrEqual(job.SalaryMin, s.SalaryMin) &&
		floatPtrEqual(job.SalaryMax, s.SalaryMax) &&
		job.SalaryCurrency == s.SalaryCurrency
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// SaveAnnotations stores the derived score and ghost fields for a job.
func (t *Tx) SaveAnnotations(ctx context.Context, jobID int64, score float64, breakdown string, ghostScore float64, ghostFlags []string) error {
	if breakdown == "" {
		breakdown = "[]"
	}
	_, err := t.tx.ExecContext(ctx,
		`UPDATE jobs SET score = ?, factor_breakdown = ?, ghost_score = ?, ghost_flags = ? WHERE id = ?`,
		score, breakdown, ghostScore, encodeFlags(ghostFlags), jobID,
	)
	if err != nil {
		return fmt.Errorf("save annotations for job %d: %w", jobID, err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findByHash(ctx context.Context, q queryRower, hash string) (*Job, error) {
	row := q.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE content_hash = ?", hash)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find job by hash: %w", err)
	}
	return job, nil
}

// FindByHash returns the job with the given content hash, or nil. It does
// not take the writer mutex.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Job, error) {
	return findByHash(ctx, s.db, hash)
}

// GetJob returns a job by id, or nil when absent.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// ListJobs returns jobs ordered by score, best first.
func (s *Store) ListJobs(ctx context.Context, opts ListOptions) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM jobs WHERE score >= ?"
	args := []any{opts.MinScore}
	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, opts.Source)
	}
	query += " ORDER BY score DESC, last_seen_at DESC, id ASC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	return queryJobs(ctx, s.db, query, args...)
}

// AllJobs returns every stored job in id order.
func (s *Store) AllJobs(ctx context.Context) ([]*Job, error) {
	return queryJobs(ctx, s.db, "SELECT "+jobColumns+" FROM jobs ORDER BY id")
}

// CountJobs returns the number of stored jobs.
func (s *Store) CountJobs(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM jobs").Scan(&count); err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

func queryJobs(ctx context.Context, q queryer, query string, args ...any) ([]*Job, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
