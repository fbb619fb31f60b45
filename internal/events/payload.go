package events

import (
	"encoding/json"
	"time"
)

// Wire payloads per event type. Contract fields are always present, even
// when zero.

type scrapeStartedPayload struct {
	Type   Type      `json:"type"`
	RunID  string    `json:"run_id,omitempty"`
	Source string    `json:"source"`
	DryRun bool      `json:"dry_run,omitempty"`
	At     time.Time `json:"at"`
}

type scrapeCompletedPayload struct {
	Type       Type      `json:"type"`
	RunID      string    `json:"run_id,omitempty"`
	Source     string    `json:"source"`
	Fetched    int       `json:"fetched"`
	New        int       `json:"new"`
	Updated    int       `json:"updated"`
	Errors     int       `json:"errors"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	DryRun     bool      `json:"dry_run,omitempty"`
	At         time.Time `json:"at"`
}

type newJobPayload struct {
	Type    Type      `json:"type"`
	RunID   string    `json:"run_id,omitempty"`
	Source  string    `json:"source,omitempty"`
	JobID   int64     `json:"job_id"`
	Title   string    `json:"title"`
	Company string    `json:"company"`
	Score   float64   `json:"score"`
	At      time.Time `json:"at"`
}

type jobUpdatedPayload struct {
	Type          Type      `json:"type"`
	RunID         string    `json:"run_id,omitempty"`
	Source        string    `json:"source,omitempty"`
	JobID         int64     `json:"job_id"`
	ChangedFields []string  `json:"changed_fields"`
	At            time.Time `json:"at"`
}

// MarshalJSON encodes the payload for the event's type.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case ScrapeStarted:
		return json.Marshal(scrapeStartedPayload{
			Type: e.Type, RunID: e.RunID, Source: e.Source, DryRun: e.DryRun, At: e.At,
		})
	case ScrapeCompleted:
		return json.Marshal(scrapeCompletedPayload{
			Type: e.Type, RunID: e.RunID, Source: e.Source,
			Fetched: e.Fetched, New: e.New, Updated: e.Updated, Errors: e.Errors,
			DurationMS: e.DurationMS, Error: e.Error, DryRun: e.DryRun, At: e.At,
		})
	case NewJob:
		return json.Marshal(newJobPayload{
			Type: e.Type, RunID: e.RunID, Source: e.Source,
			JobID: e.JobID, Title: e.Title, Company: e.Company, Score: e.Score, At: e.At,
		})
	case JobUpdated:
		changed := e.ChangedFields
		if changed == nil {
			changed = []string{}
		}
		return json.Marshal(jobUpdatedPayload{
			Type: e.Type, RunID: e.RunID, Source: e.Source, JobID: e.JobID, ChangedFields: changed, At: e.At,
		})
	default:
		type plain Event
		return json.Marshal(plain(e))
	}
}
