// Package ghost flags postings that look stale, reposted, or perpetually
// open. The detector only annotates; nothing is hidden or deleted.
package ghost

import (
	"fmt"
	"strings"
	"time"

	"jobsieve/internal/config"
	"jobsieve/internal/store"
)

// Signal names stored in a job's ghost_flags.
const (
	FlagStale        = "stale"
	FlagRepost       = "repost"
	FlagAlwaysHiring = "always_hiring"
)

const day = 24 * time.Hour

// Result is the ghost evaluation of one job.
type Result struct {
	Score      float64
	Flags      []string
	Reasons    []string
	Suspicious bool
}

// Detector evaluates ghost signals with configured windows and weights.
type Detector struct {
	cfg     config.Ghost
	phrases []string
}

// NewDetector builds a Detector from the ghost configuration.
func NewDetector(cfg config.Ghost) *Detector {
	phrases := make([]string, 0, len(cfg.AlwaysHiringPhrases))
	for _, p := range cfg.AlwaysHiringPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Detector{cfg: cfg, phrases: phrases}
}

// Evaluate scores job. typicalFillDays overrides the configured stale window
// when positive.
func (d *Detector) Evaluate(job *store.Job, typicalFillDays int) Result {
	var result Result
	if job == nil {
		return result
	}

	staleDays := d.cfg.StaleAfterDays
	if typicalFillDays > 0 {
		staleDays = typicalFillDays
	}
	if staleDays > 0 {
		opened := job.CreatedAt
		if job.PostedAt != nil {
			opened = *job.PostedAt
		}
		if !opened.IsZero() && !job.LastSeenAt.IsZero() {
			if open := job.LastSeenAt.Sub(opened); open > time.Duration(staleDays)*day {
				result.add(FlagStale, d.cfg.StaleWeight,
					fmt.Sprintf("open %d days, typical fill time %d days", int(open/day), staleDays))
			}
		}
	}

	if d.cfg.RepostDormantDays > 0 {
		window := int64(d.cfg.RepostDormantDays) * int64(day/time.Second)
		if job.MaxGapSeconds >= window {
			result.add(FlagRepost, d.cfg.RepostWeight,
				fmt.Sprintf("reappeared after %d dormant days", job.MaxGapSeconds/int64(day/time.Second)))
		}
	}

	if phrase := d.matchPhrase(job.Description); phrase != "" {
		result.add(FlagAlwaysHiring, d.cfg.AlwaysHiringWeight, fmt.Sprintf("description says %q", phrase))
	}

	result.Score = min(result.Score, 100)
	result.Suspicious = len(result.Flags) > 0 && result.Score >= d.cfg.Threshold
	return result
}

func (d *Detector) matchPhrase(description string) string {
	if description == "" {
		return ""
	}
	text := strings.ToLower(description)
	for _, p := range d.phrases {
		if strings.Contains(text, p) {
			return p
		}
	}
	return ""
}

func (r *Result) add(flag string, weight float64, reason string) {
	r.Flags = append(r.Flags, flag)
	r.Reasons = append(r.Reasons, reason)
	r.Score += max(weight, 0)
}
