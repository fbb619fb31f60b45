package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

const jobColumns = "id, content_hash, source, source_job_id, url, title, company, location, description, salary_min, salary_max, salary_currency, remote, posted_at, source_edited_at, score, factor_breakdown, created_at, updated_at, last_seen_at, times_seen, max_gap_seconds, ghost_score, ghost_flags, alert_sent, included_in_digest"

type rowScanner interface{ Scan(dest ...any) error }

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job           Job
		sourceJobID   sql.NullString
		urlValue      sql.NullString
		company       sql.NullString
		location      sql.NullString
		description   sql.NullString
		salaryMin     sql.NullFloat64
		salaryMax     sql.NullFloat64
		currency      sql.NullString
		remote        int
		postedRaw     sql.NullString
		editedRaw     sql.NullString
		createdRaw    string
		updatedRaw    string
		lastSeenRaw   string
		ghostFlagsRaw string
		alertSent     int
		inDigest      int
	)
	if err := scanner.Scan(
		&job.ID,
		&job.ContentHash,
		&job.Source,
		&sourceJobID,
		&urlValue,
		&job.Title,
		&company,
		&location,
		&description,
		&salaryMin,
		&salaryMax,
		&currency,
		&remote,
		&postedRaw,
		&editedRaw,
		&job.Score,
		&job.FactorBreakdown,
		&createdRaw,
		&updatedRaw,
		&lastSeenRaw,
		&job.TimesSeen,
		&job.MaxGapSeconds,
		&job.GhostScore,
		&ghostFlagsRaw,
		&alertSent,
		&inDigest,
	); err != nil {
		return nil, err
	}

	job.SourceJobID = sourceJobID.String
	job.URL = urlValue.String
	job.Company = company.String
	job.Location = location.String
	job.Description = description.String
	job.SalaryMin = nullFloatPtr(salaryMin)
	job.SalaryMax = nullFloatPtr(salaryMax)
	job.SalaryCurrency = currency.String
	job.Remote = remote != 0
	job.PostedAt = nullTimePtr(postedRaw)
	job.SourceEditedAt = nullTimePtr(editedRaw)
	job.AlertSent = alertSent != 0
	job.IncludedInDigest = inDigest != 0
	job.CreatedAt, _ = parseTimeString(createdRaw)
	job.UpdatedAt, _ = parseTimeString(updatedRaw)
	job.LastSeenAt, _ = parseTimeString(lastSeenRaw)
	if ghostFlagsRaw != "" {
		_ = json.Unmarshal([]byte(ghostFlagsRaw), &job.GhostFlags)
	}
	return &job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullFloatPtr(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

func nullTimePtr(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func encodeFlags(flags []string) string {
	if len(flags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return "[]"
	}
	return string(data)
}
