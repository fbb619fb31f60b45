package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"jobsieve/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "jobsieve")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "jobs.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Scoring.Weights.Total() != 100 {
		t.Fatalf("expected default weights to sum to 100, got %v", cfg.Scoring.Weights.Total())
	}
	if cfg.Ingest.RequestTimeoutSeconds != 30 {
		t.Fatalf("expected 30s request timeout, got %d", cfg.Ingest.RequestTimeoutSeconds)
	}
	if len(cfg.Sources) != 0 {
		t.Fatalf("expected no sources by default, got %d", len(cfg.Sources))
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("ADZUNA_APP_ID", "env-id")
	t.Setenv("ADZUNA_APP_KEY", "env-key")

	configPath := filepath.Join(tempHome, "config.toml")
	content := `
[paths]
data_dir = "~/data"

[logging]
format = "JSON"
level = "debug"

[resilience]
requests_per_minute = 60

[[sources]]
id = " adzuna "
kind = "Adzuna"
query = "go"

[sources.resilience]
failure_threshold = 2

[[sources]]
id = "board"
kind = "html"
url = "https://jobs.example.com"
enabled = false

[sources.selectors]
item = ".job"
title = "h2"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}

	src, ok := cfg.SourceByID("adzuna")
	if !ok {
		t.Fatal("expected trimmed source id")
	}
	if src.Kind != "adzuna" {
		t.Fatalf("expected lowercased kind, got %q", src.Kind)
	}
	if src.AppID != "env-id" || src.AppKey != "env-key" {
		t.Fatalf("expected credentials from env, got %q/%q", src.AppID, src.AppKey)
	}
	if src.MaxPages != 5 || src.PageParam != "page" {
		t.Fatalf("expected page defaults, got %d/%q", src.MaxPages, src.PageParam)
	}

	merged := cfg.SourceResilience(src)
	if merged.FailureThreshold != 2 {
		t.Fatalf("expected source override, got %d", merged.FailureThreshold)
	}
	if merged.RequestsPerMinute != 60 {
		t.Fatalf("expected global rpm, got %v", merged.RequestsPerMinute)
	}

	enabled := cfg.EnabledSources()
	if len(enabled) != 1 || enabled[0].ID != "adzuna" {
		t.Fatalf("unexpected enabled sources: %+v", enabled)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "weights not summing to 100",
			mutate: func(c *config.Config) { c.Scoring.Weights.Recency = 10 },
			want:   "sum to 100",
		},
		{
			name:   "negative weight",
			mutate: func(c *config.Config) { c.Scoring.Weights.Recency = -5; c.Scoring.Weights.SkillsTitle = 50 },
			want:   "must be >= 0",
		},
		{
			name: "duplicate source ids",
			mutate: func(c *config.Config) {
				c.Sources = []config.Source{
					{ID: "a", Kind: "greenhouse", Board: "x"},
					{ID: "a", Kind: "greenhouse", Board: "y"},
				}
			},
			want: "duplicated",
		},
		{
			name:   "unknown kind",
			mutate: func(c *config.Config) { c.Sources = []config.Source{{ID: "a", Kind: "ftp"}} },
			want:   "must be one of",
		},
		{
			name:   "html without selectors",
			mutate: func(c *config.Config) { c.Sources = []config.Source{{ID: "a", Kind: "html", URL: "http://x"}} },
			want:   "selectors.item",
		},
		{
			name:   "greenhouse without board",
			mutate: func(c *config.Config) { c.Sources = []config.Source{{ID: "a", Kind: "greenhouse"}} },
			want:   "board",
		},
		{
			name:   "zero concurrency",
			mutate: func(c *config.Config) { c.Ingest.MaxConcurrency = 0 },
			want:   "ingest.max_concurrency",
		},
		{
			name:   "cooldown multiplier below one",
			mutate: func(c *config.Config) { c.Resilience.CooldownMultiplier = 0.5 },
			want:   "cooldown_multiplier",
		},
		{
			name:   "backup retention",
			mutate: func(c *config.Config) { c.Backup.Retention = 0 },
			want:   "backup.retention",
		},
		{
			name:   "ghost threshold",
			mutate: func(c *config.Config) { c.Ghost.Threshold = 0 },
			want:   "ghost.threshold",
		},
		{
			name:   "bad ingest schedule",
			mutate: func(c *config.Config) { c.Ingest.Schedule = "every tuesday" },
			want:   "ingest.schedule",
		},
		{
			name:   "backup schedule when enabled",
			mutate: func(c *config.Config) { c.Backup.Enabled = true; c.Backup.Schedule = "" },
			want:   "backup.schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if len(cfg.Sources) != 3 {
		t.Fatalf("expected 3 sample sources, got %d", len(cfg.Sources))
	}
	if len(cfg.EnabledSources()) != 0 {
		t.Fatal("expected sample sources disabled")
	}
}

func TestConcurrencyCapsWorkers(t *testing.T) {
	cfg := config.Default()
	cfg.Ingest.MaxConcurrency = 3
	if got := cfg.Concurrency(10); got != 3 {
		t.Fatalf("expected cap of 3, got %d", got)
	}
	if got := cfg.Concurrency(2); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := cfg.Concurrency(0); got != 1 {
		t.Fatalf("expected minimum of 1, got %d", got)
	}
}
