package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/robfig/cron/v3"
)

// SourceKinds lists the adapter kinds the source registry understands.
var SourceKinds = []string{"adzuna", "greenhouse", "html"}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := validateResilience("resilience", c.Resilience); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	if err := c.validateGhost(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	return c.validateSchedules()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
}

func (c *Config) validateIngest() error {
	if err := ensurePositiveMap(map[string]int{
		"ingest.max_concurrency":         c.Ingest.MaxConcurrency,
		"ingest.max_in_flight_requests":  c.Ingest.MaxInFlightRequests,
		"ingest.request_timeout_seconds": c.Ingest.RequestTimeoutSeconds,
		"store.busy_timeout_ms":          c.Store.BusyTimeoutMillis,
	}); err != nil {
		return err
	}
	if c.Ingest.RunTimeoutSeconds < 0 {
		return errors.New("ingest.run_timeout_seconds must be >= 0")
	}
	switch c.Store.Synchronous {
	case "OFF", "NORMAL", "FULL", "EXTRA":
	default:
		return fmt.Errorf("store.synchronous %q must be one of OFF, NORMAL, FULL, EXTRA", c.Store.Synchronous)
	}
	return nil
}

func validateResilience(prefix string, r Resilience) error {
	if r.RequestsPerMinute <= 0 {
		return fmt.Errorf("%s.requests_per_minute must be positive", prefix)
	}
	if err := ensurePositiveMap(map[string]int{
		prefix + ".burst":                r.Burst,
		prefix + ".backoff_base_ms":      r.BackoffBaseMillis,
		prefix + ".backoff_max_ms":       r.BackoffMaxMillis,
		prefix + ".failure_threshold":    r.FailureThreshold,
		prefix + ".cooldown_seconds":     r.CooldownSeconds,
		prefix + ".max_cooldown_seconds": r.MaxCooldownSeconds,
	}); err != nil {
		return err
	}
	if r.MaxRetries < 0 {
		return fmt.Errorf("%s.max_retries must be >= 0", prefix)
	}
	if r.CooldownMultiplier < 1 {
		return fmt.Errorf("%s.cooldown_multiplier must be >= 1", prefix)
	}
	if r.BackoffMaxMillis < r.BackoffBaseMillis {
		return fmt.Errorf("%s.backoff_max_ms must be >= backoff_base_ms", prefix)
	}
	if r.MaxCooldownSeconds < r.CooldownSeconds {
		return fmt.Errorf("%s.max_cooldown_seconds must be >= cooldown_seconds", prefix)
	}
	return nil
}

func (c *Config) validateSources() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for idx, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d].id must be set", idx)
		}
		if _, dup := seen[src.ID]; dup {
			return fmt.Errorf("sources[%d].id %q is duplicated", idx, src.ID)
		}
		seen[src.ID] = struct{}{}

		prefix := fmt.Sprintf("sources.%s", src.ID)
		switch src.Kind {
		case "adzuna":
			if src.IsEnabled() && (src.AppID == "" || src.AppKey == "") {
				return fmt.Errorf("%s requires app_id and app_key (or ADZUNA_APP_ID / ADZUNA_APP_KEY)", prefix)
			}
		case "greenhouse":
			if strings.TrimSpace(src.Board) == "" {
				return fmt.Errorf("%s.board must be set for greenhouse sources", prefix)
			}
		case "html":
			if src.URL == "" {
				return fmt.Errorf("%s.url must be set for html sources", prefix)
			}
			if strings.TrimSpace(src.Selectors.Item) == "" || strings.TrimSpace(src.Selectors.Title) == "" {
				return fmt.Errorf("%s.selectors.item and selectors.title must be set", prefix)
			}
		default:
			return fmt.Errorf("%s.kind %q must be one of %s", prefix, src.Kind, strings.Join(SourceKinds, ", "))
		}
		if err := validateResilience(prefix+".resilience", c.SourceResilience(src)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateScoring() error {
	w := c.Scoring.Weights
	for name, value := range map[string]float64{
		"skills_title": w.SkillsTitle,
		"salary":       w.Salary,
		"location":     w.Location,
		"company":      w.Company,
		"recency":      w.Recency,
	} {
		if value < 0 {
			return fmt.Errorf("scoring.weights.%s must be >= 0", name)
		}
	}
	if math.Abs(w.Total()-100) > 1e-6 {
		return fmt.Errorf("scoring.weights must sum to 100 (got %.2f)", w.Total())
	}
	if c.Scoring.DesiredSalaryMin < 0 {
		return errors.New("scoring.desired_salary_min must be >= 0")
	}
	return nil
}

func (c *Config) validateGhost() error {
	if err := ensurePositiveMap(map[string]int{
		"ghost.stale_after_days":    c.Ghost.StaleAfterDays,
		"ghost.repost_dormant_days": c.Ghost.RepostDormantDays,
	}); err != nil {
		return err
	}
	if c.Ghost.StaleWeight < 0 || c.Ghost.RepostWeight < 0 || c.Ghost.AlwaysHiringWeight < 0 {
		return errors.New("ghost weights must be >= 0")
	}
	if c.Ghost.Threshold <= 0 || c.Ghost.Threshold > 100 {
		return errors.New("ghost.threshold must be in (0, 100]")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Integrity.RecordRetention < 1 {
		return errors.New("integrity.record_retention must be >= 1")
	}
	if c.Backup.Retention < 1 {
		return errors.New("backup.retention must be >= 1")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func (c *Config) validateSchedules() error {
	schedules := []struct{ key, value string }{
		{"ingest.schedule", c.Ingest.Schedule},
		{"integrity.full_check_schedule", c.Integrity.FullCheckSchedule},
	}
	if c.Backup.Enabled {
		schedules = append(schedules, struct{ key, value string }{"backup.schedule", c.Backup.Schedule})
	}
	for _, s := range schedules {
		if strings.TrimSpace(s.value) == "" {
			return fmt.Errorf("%s is required", s.key)
		}
		if _, err := cron.ParseStandard(s.value); err != nil {
			return fmt.Errorf("%s %q: %w", s.key, s.value, err)
		}
	}
	return nil
}
