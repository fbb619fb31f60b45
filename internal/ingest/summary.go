package ingest

import (
	"time"

	"jobsieve/internal/resilience"
)

// SourceSummary is the outcome of one source within a run.
type SourceSummary struct {
	Source       string        `json:"source"`
	Kind         string        `json:"kind"`
	Pages        int           `json:"pages"`
	Fetched      int           `json:"fetched"`
	New          int           `json:"new"`
	Updated      int           `json:"updated"`
	Errors       int           `json:"errors"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	BreakerState string        `json:"breaker_state"`
}

// RunSummary is the outcome of one RunOnce call.
type RunSummary struct {
	RunID       string                `json:"run_id"`
	DryRun      bool                  `json:"dry_run"`
	StartedAt   time.Time             `json:"started_at"`
	Duration    time.Duration         `json:"duration"`
	TimedOut    bool                  `json:"timed_out"`
	Interrupted bool                  `json:"interrupted"`
	Sources     []SourceSummary       `json:"sources"`
	Fetched     int                   `json:"fetched"`
	New         int                   `json:"new"`
	Updated     int                   `json:"updated"`
	Errors      int                   `json:"errors"`
	Breakers    []resilience.Snapshot `json:"breakers,omitempty"`
}

func (s *RunSummary) addTotals(src SourceSummary) {
	s.Fetched += src.Fetched
	s.New += src.New
	s.Updated += src.Updated
	s.Errors += src.Errors
}

// Source returns the summary for a source id.
func (s RunSummary) Source(id string) (SourceSummary, bool) {
	for _, src := range s.Sources {
		if src.Source == id {
			return src, true
		}
	}
	return SourceSummary{}, false
}
