package store

import "time"

// Job is one durable, deduplicated posting.
type Job struct {
	ID               int64
	ContentHash      string
	Source           string
	SourceJobID      string
	URL              string
	Title            string
	Company          string
	Location         string
	Description      string
	SalaryMin        *float64
	SalaryMax        *float64
	SalaryCurrency   string
	Remote           bool
	PostedAt         *time.Time
	SourceEditedAt   *time.Time
	Score            float64
	FactorBreakdown  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastSeenAt       time.Time
	TimesSeen        int
	MaxGapSeconds    int64
	GhostScore       float64
	GhostFlags       []string
	AlertSent        bool
	IncludedInDigest bool
}

// Sighting is one observation of a posting, keyed by its content hash.
type Sighting struct {
	ContentHash    string
	Source         string
	SourceJobID    string
	URL            string
	Title          string
	Company        string
	Location       string
	Description    string
	SalaryMin      *float64
	SalaryMax      *float64
	SalaryCurrency string
	Remote         bool
	PostedAt       *time.Time
	EditedAt       *time.Time
	SeenAt         time.Time
}

// UpsertResult reports what an upsert did to the stored row.
type UpsertResult struct {
	Job           *Job
	Created       bool
	ChangedFields []string
}

// CheckType identifies an integrity check variant.
type CheckType string

const (
	CheckQuick      CheckType = "quick"
	CheckFull       CheckType = "full"
	CheckForeignKey CheckType = "foreign_key"
)

// CheckStatus is the outcome of an integrity check.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckWarning CheckStatus = "warning"
)

// IntegrityCheck is both the outcome of a check and its persisted record.
type IntegrityCheck struct {
	ID        int64
	Type      CheckType
	Status    CheckStatus
	Duration  time.Duration
	Detail    string
	CheckedAt time.Time
}

// BackupRecord describes one snapshot attempt.
type BackupRecord struct {
	ID           int64
	Path         string
	SizeBytes    int64
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}

// ScrapeRun is the per-source outcome of one ingestion run.
type ScrapeRun struct {
	ID           int64
	RunID        string
	Source       string
	Fetched      int
	New          int
	Updated      int
	Errors       int
	Duration     time.Duration
	ErrorMessage string
	BreakerState string
	StartedAt    time.Time
}

// Application links an external application tracker entry to a job.
type Application struct {
	ID        int64
	JobID     int64
	Status    string
	Note      string
	CreatedAt time.Time
}

// ListOptions filters job listings.
type ListOptions struct {
	Limit    int
	MinScore float64
	Source   string
}
