package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeStore()
	c.normalizeIngest()
	c.normalizeSources()
	c.normalizeScoring()
	c.normalizeGhost()
	c.normalizeEvents()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.BackupDir) == "" {
		c.Paths.BackupDir = defaultBackupDir
	}
	if c.Paths.BackupDir, err = expandPath(c.Paths.BackupDir); err != nil {
		return fmt.Errorf("paths.backup_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeStore() {
	c.Store.Synchronous = strings.ToUpper(strings.TrimSpace(c.Store.Synchronous))
	if c.Store.Synchronous == "" {
		c.Store.Synchronous = defaultSynchronous
	}
	if c.Store.BusyTimeoutMillis <= 0 {
		c.Store.BusyTimeoutMillis = defaultBusyTimeoutMillis
	}
}

func (c *Config) normalizeIngest() {
	c.Ingest.UserAgent = strings.TrimSpace(c.Ingest.UserAgent)
	if c.Ingest.UserAgent == "" {
		c.Ingest.UserAgent = defaultUserAgent
	}
	c.Ingest.Schedule = strings.TrimSpace(c.Ingest.Schedule)
	if c.Ingest.RequestTimeoutSeconds <= 0 {
		c.Ingest.RequestTimeoutSeconds = defaultRequestTimeoutSeconds
	}
	if c.Ingest.GracePeriodSeconds < 0 {
		c.Ingest.GracePeriodSeconds = 0
	}
}

func (c *Config) normalizeSources() {
	for i := range c.Sources {
		src := &c.Sources[i]
		src.ID = strings.TrimSpace(src.ID)
		src.Kind = strings.ToLower(strings.TrimSpace(src.Kind))
		src.URL = strings.TrimSpace(src.URL)
		src.Country = strings.ToLower(strings.TrimSpace(src.Country))
		src.Currency = strings.ToUpper(strings.TrimSpace(src.Currency))
		if src.MaxPages <= 0 {
			src.MaxPages = defaultMaxPages
		}
		if strings.TrimSpace(src.PageParam) == "" {
			src.PageParam = defaultPageParam
		}
		if src.Kind == "adzuna" {
			if src.AppID == "" {
				if value, ok := os.LookupEnv("ADZUNA_APP_ID"); ok {
					src.AppID = strings.TrimSpace(value)
				}
			}
			if src.AppKey == "" {
				if value, ok := os.LookupEnv("ADZUNA_APP_KEY"); ok {
					src.AppKey = strings.TrimSpace(value)
				}
			}
			if src.Country == "" {
				src.Country = "us"
			}
		}
	}
}

func (c *Config) normalizeScoring() {
	c.Scoring.TargetTitles = cleanList(c.Scoring.TargetTitles)
	c.Scoring.Skills = cleanList(c.Scoring.Skills)
	c.Scoring.Locations = cleanList(c.Scoring.Locations)
	c.Scoring.BlockedLocations = cleanList(c.Scoring.BlockedLocations)
	c.Scoring.PreferredCompanies = cleanList(c.Scoring.PreferredCompanies)
	c.Scoring.AvoidCompanies = cleanList(c.Scoring.AvoidCompanies)
	c.Scoring.SalaryCurrency = strings.ToUpper(strings.TrimSpace(c.Scoring.SalaryCurrency))
	if c.Scoring.FreshDays <= 0 {
		c.Scoring.FreshDays = defaultFreshDays
	}
	if c.Scoring.StaleDays <= c.Scoring.FreshDays {
		c.Scoring.StaleDays = c.Scoring.FreshDays + defaultStaleDays - defaultFreshDays
	}
}

func (c *Config) normalizeGhost() {
	c.Ghost.AlwaysHiringPhrases = cleanList(c.Ghost.AlwaysHiringPhrases)
	for i, phrase := range c.Ghost.AlwaysHiringPhrases {
		c.Ghost.AlwaysHiringPhrases[i] = strings.ToLower(phrase)
	}
}

func (c *Config) normalizeEvents() {
	c.Events.RedisURL = strings.TrimSpace(c.Events.RedisURL)
	if c.Events.RedisURL == "" {
		if value, ok := os.LookupEnv("JOBSIEVE_REDIS_URL"); ok {
			c.Events.RedisURL = strings.TrimSpace(value)
		}
	}
	c.Events.RedisChannel = strings.TrimSpace(c.Events.RedisChannel)
	if c.Events.RedisChannel == "" {
		c.Events.RedisChannel = defaultRedisChannel
	}
}

func cleanList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
