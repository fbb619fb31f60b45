package testsupport

import (
	"path/filepath"
	"testing"

	"jobsieve/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Sources are empty and logging is quiet unless options say otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.BackupDir = filepath.Join(base, "backups")
	cfgVal.Logging.Level = "error"
	cfgVal.Events.Log = false
	cfgVal.Ingest.GracePeriodSeconds = 1
	cfgVal.Resilience.BackoffBaseMillis = 1
	cfgVal.Resilience.BackoffMaxMillis = 5
	cfgVal.Resilience.RequestsPerMinute = 60000
	cfgVal.Resilience.Burst = 100

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithSources replaces the configured sources.
func WithSources(sources ...config.Source) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources = append([]config.Source(nil), sources...)
	}
}

// WithScoring replaces the scoring preferences, keeping default weights when
// the provided weights are all zero.
func WithScoring(scoring config.Scoring) ConfigOption {
	return func(b *configBuilder) {
		if scoring.Weights.Total() == 0 {
			scoring.Weights = b.cfg.Scoring.Weights
		}
		if scoring.FreshDays == 0 {
			scoring.FreshDays = b.cfg.Scoring.FreshDays
		}
		if scoring.StaleDays == 0 {
			scoring.StaleDays = b.cfg.Scoring.StaleDays
		}
		b.cfg.Scoring = scoring
	}
}

// WithBreaker overrides the global breaker threshold and cooldown.
func WithBreaker(threshold, cooldownSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Resilience.FailureThreshold = threshold
		b.cfg.Resilience.CooldownSeconds = cooldownSeconds
		if b.cfg.Resilience.MaxCooldownSeconds < cooldownSeconds {
			b.cfg.Resilience.MaxCooldownSeconds = cooldownSeconds
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
