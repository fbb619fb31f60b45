package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	BackupDir string `toml:"backup_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Store contains connection-time tuning for the embedded database.
type Store struct {
	BusyTimeoutMillis int    `toml:"busy_timeout_ms"`
	CacheSizeKiB      int    `toml:"cache_size_kib"`
	Synchronous       string `toml:"synchronous"`
}

// Ingest contains coordinator settings.
type Ingest struct {
	MaxConcurrency        int    `toml:"max_concurrency"`
	MaxInFlightRequests   int    `toml:"max_in_flight_requests"`
	RunTimeoutSeconds     int    `toml:"run_timeout_seconds"`
	GracePeriodSeconds    int    `toml:"grace_period_seconds"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	UserAgent             string `toml:"user_agent"`
	Schedule              string `toml:"schedule"`
}

// Resilience holds rate-limit and circuit-breaker parameters. Zero values in
// a source override inherit the global value.
type Resilience struct {
	RequestsPerMinute  float64 `toml:"requests_per_minute"`
	Burst              int     `toml:"burst"`
	MaxRetries         int     `toml:"max_retries"`
	BackoffBaseMillis  int     `toml:"backoff_base_ms"`
	BackoffMaxMillis   int     `toml:"backoff_max_ms"`
	FailureThreshold   int     `toml:"failure_threshold"`
	CooldownSeconds    int     `toml:"cooldown_seconds"`
	CooldownMultiplier float64 `toml:"cooldown_multiplier"`
	MaxCooldownSeconds int     `toml:"max_cooldown_seconds"`
}

// Selectors configures CSS selectors for the html source kind.
type Selectors struct {
	Item        string `toml:"item"`
	Title       string `toml:"title"`
	Company     string `toml:"company"`
	Location    string `toml:"location"`
	Link        string `toml:"link"`
	Description string `toml:"description"`
	Salary      string `toml:"salary"`
	Posted      string `toml:"posted"`
	IDAttr      string `toml:"id_attr"`
}

// Source describes one external job source.
type Source struct {
	ID              string     `toml:"id"`
	Kind            string     `toml:"kind"`
	Enabled         *bool      `toml:"enabled"`
	IgnoreRobots    bool       `toml:"ignore_robots"`
	URL             string     `toml:"url"`
	Query           string     `toml:"query"`
	Location        string     `toml:"location"`
	Country         string     `toml:"country"`
	AppID           string     `toml:"app_id"`
	AppKey          string     `toml:"app_key"`
	Board           string     `toml:"board"`
	MaxPages        int        `toml:"max_pages"`
	PageParam       string     `toml:"page_param"`
	DateLayout      string     `toml:"date_layout"`
	Currency        string     `toml:"currency"`
	TypicalFillDays int        `toml:"typical_fill_days"`
	Selectors       Selectors  `toml:"selectors"`
	Resilience      Resilience `toml:"resilience"`
}

// IsEnabled reports whether the source participates in runs. Sources are
// enabled unless explicitly disabled.
func (s Source) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Weights are the scoring factor weights in points; they must sum to 100.
type Weights struct {
	SkillsTitle float64 `toml:"skills_title"`
	Salary      float64 `toml:"salary"`
	Location    float64 `toml:"location"`
	Company     float64 `toml:"company"`
	Recency     float64 `toml:"recency"`
}

// Total returns the sum of all weights.
func (w Weights) Total() float64 {
	return w.SkillsTitle + w.Salary + w.Location + w.Company + w.Recency
}

// Scoring contains user preferences and factor weights.
type Scoring struct {
	Weights            Weights  `toml:"weights"`
	TargetTitles       []string `toml:"target_titles"`
	Skills             []string `toml:"skills"`
	DesiredSalaryMin   float64  `toml:"desired_salary_min"`
	SalaryCurrency     string   `toml:"salary_currency"`
	Locations          []string `toml:"locations"`
	BlockedLocations   []string `toml:"blocked_locations"`
	RemoteOK           bool     `toml:"remote_ok"`
	PreferredCompanies []string `toml:"preferred_companies"`
	AvoidCompanies     []string `toml:"avoid_companies"`
	FreshDays          int      `toml:"fresh_days"`
	StaleDays          int      `toml:"stale_days"`
}

// Ghost contains ghost-posting heuristics.
type Ghost struct {
	StaleAfterDays      int      `toml:"stale_after_days"`
	RepostDormantDays   int      `toml:"repost_dormant_days"`
	AlwaysHiringPhrases []string `toml:"always_hiring_phrases"`
	StaleWeight         float64  `toml:"stale_weight"`
	RepostWeight        float64  `toml:"repost_weight"`
	AlwaysHiringWeight  float64  `toml:"always_hiring_weight"`
	Threshold           float64  `toml:"threshold"`
}

// Integrity contains storage verification settings.
type Integrity struct {
	FullCheckSchedule string `toml:"full_check_schedule"`
	RecordRetention   int    `toml:"record_retention"`
}

// Backup contains snapshot settings.
type Backup struct {
	Enabled   bool   `toml:"enabled"`
	Schedule  string `toml:"schedule"`
	Retention int    `toml:"retention"`
}

// Events contains lifecycle event sink settings.
type Events struct {
	Log          bool   `toml:"log"`
	RedisURL     string `toml:"redis_url"`
	RedisChannel string `toml:"redis_channel"`
}

// Config encapsulates all configuration values for jobsieve.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and backup directories
//   - Logging: log format, level, and retention
//   - Store: embedded database tuning applied at open
//   - Ingest: coordinator concurrency, budgets, timeouts, and schedule
//   - Resilience: default rate limits and breaker thresholds
//   - Sources: per-source definitions and overrides
//   - Scoring: preferences and factor weights
//   - Ghost: ghost-posting heuristics
//   - Integrity: full-check schedule and record retention
//   - Backup: snapshot schedule and retention
//   - Events: lifecycle event sinks
type Config struct {
	Paths      Paths      `toml:"paths"`
	Logging    Logging    `toml:"logging"`
	Store      Store      `toml:"store"`
	Ingest     Ingest     `toml:"ingest"`
	Resilience Resilience `toml:"resilience"`
	Sources    []Source   `toml:"sources"`
	Scoring    Scoring    `toml:"scoring"`
	Ghost      Ghost      `toml:"ghost"`
	Integrity  Integrity  `toml:"integrity"`
	Backup     Backup     `toml:"backup"`
	Events     Events     `toml:"events"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/jobsieve/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("jobsieve.toml")
	if err != nil {
		return "", false, fmt.Errorf("resolve project config path: %w", err)
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.BackupDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the jobs database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "jobsieve.lock")
}

// EnabledSources returns sources that take part in ingestion runs.
func (c *Config) EnabledSources() []Source {
	out := make([]Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		if src.IsEnabled() {
			out = append(out, src)
		}
	}
	return out
}

// SourceByID returns the configured source with the given id.
func (c *Config) SourceByID(id string) (Source, bool) {
	for _, src := range c.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return Source{}, false
}

// SourceResilience merges a source's overrides on top of the global resilience
// settings.
func (c *Config) SourceResilience(src Source) Resilience {
	merged := c.Resilience
	o := src.Resilience
	if o.RequestsPerMinute > 0 {
		merged.RequestsPerMinute = o.RequestsPerMinute
	}
	if o.Burst > 0 {
		merged.Burst = o.Burst
	}
	if o.MaxRetries > 0 {
		merged.MaxRetries = o.MaxRetries
	}
	if o.BackoffBaseMillis > 0 {
		merged.BackoffBaseMillis = o.BackoffBaseMillis
	}
	if o.BackoffMaxMillis > 0 {
		merged.BackoffMaxMillis = o.BackoffMaxMillis
	}
	if o.FailureThreshold > 0 {
		merged.FailureThreshold = o.FailureThreshold
	}
	if o.CooldownSeconds > 0 {
		merged.CooldownSeconds = o.CooldownSeconds
	}
	if o.CooldownMultiplier > 0 {
		merged.CooldownMultiplier = o.CooldownMultiplier
	}
	if o.MaxCooldownSeconds > 0 {
		merged.MaxCooldownSeconds = o.MaxCooldownSeconds
	}
	return merged
}

// RequestTimeout returns the per-request timeout for adapters.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Ingest.RequestTimeoutSeconds) * time.Second
}

// RunTimeout returns the run-level timeout; zero disables it.
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Ingest.RunTimeoutSeconds) * time.Second
}

// GracePeriod returns how long in-flight adapters may finish their current
// page after a run is cancelled.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Ingest.GracePeriodSeconds) * time.Second
}

// Concurrency returns the coordinator worker count for n enabled sources.
func (c *Config) Concurrency(n int) int {
	if n <= 0 {
		return 1
	}
	if c.Ingest.MaxConcurrency > 0 && n > c.Ingest.MaxConcurrency {
		return c.Ingest.MaxConcurrency
	}
	return n
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
