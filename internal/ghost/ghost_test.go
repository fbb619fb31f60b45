package ghost_test

import (
	"slices"
	"testing"
	"time"

	"jobsieve/internal/config"
	"jobsieve/internal/ghost"
	"jobsieve/internal/testsupport"
)

func TestRepostAfterDormancyCrossesThreshold(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	first := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	testsupport.MustUpsert(t, st, testsupport.Sighting("hash-ghost", first))
	res := testsupport.MustUpsert(t, st, testsupport.Sighting("hash-ghost", first.AddDate(0, 0, 35)))

	detector := ghost.NewDetector(cfg.Ghost)
	result := detector.Evaluate(res.Job, 0)
	if !slices.Contains(result.Flags, ghost.FlagRepost) {
		t.Fatalf("expected repost flag, got %v", result.Flags)
	}
	if !result.Suspicious || result.Score < cfg.Ghost.Threshold {
		t.Fatalf("expected score %v to cross threshold %v", result.Score, cfg.Ghost.Threshold)
	}
}

func TestShortGapIsNotRepost(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	first := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	testsupport.MustUpsert(t, st, testsupport.Sighting("hash-fresh", first))
	res := testsupport.MustUpsert(t, st, testsupport.Sighting("hash-fresh", first.AddDate(0, 0, 3)))

	result := ghost.NewDetector(cfg.Ghost).Evaluate(res.Job, 0)
	if len(result.Flags) != 0 || result.Score != 0 || result.Suspicious {
		t.Fatalf("expected clean result, got %+v", result)
	}
}

func TestStaleUsesSourceFillTime(t *testing.T) {
	cfg := config.Default().Ghost
	detector := ghost.NewDetector(cfg)

	seen := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	posted := seen.AddDate(0, 0, -20)
	job := testsupport.StoredJob(seen)
	job.PostedAt = &posted

	if result := detector.Evaluate(job, 0); slices.Contains(result.Flags, ghost.FlagStale) {
		t.Fatalf("20 days should not be stale with the default window, got %v", result.Flags)
	}
	result := detector.Evaluate(job, 14)
	if !slices.Contains(result.Flags, ghost.FlagStale) {
		t.Fatalf("expected stale with a 14 day fill time, got %v", result.Flags)
	}
	if result.Score != cfg.StaleWeight {
		t.Fatalf("expected stale weight %v, got %v", cfg.StaleWeight, result.Score)
	}
}

func TestAlwaysHiringPhrasesAndCap(t *testing.T) {
	cfg := config.Ghost{
		StaleAfterDays:      10,
		RepostDormantDays:   10,
		AlwaysHiringPhrases: []string{"Always Hiring"},
		StaleWeight:         60,
		RepostWeight:        60,
		AlwaysHiringWeight:  60,
		Threshold:           50,
	}
	seen := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	job := testsupport.StoredJob(seen)
	job.CreatedAt = seen.AddDate(0, -2, 0)
	job.MaxGapSeconds = int64(40 * 24 * time.Hour / time.Second)
	job.Description = "We are ALWAYS HIRING talented people."

	result := ghost.NewDetector(cfg).Evaluate(job, 0)
	want := []string{ghost.FlagStale, ghost.FlagRepost, ghost.FlagAlwaysHiring}
	if !slices.Equal(result.Flags, want) {
		t.Fatalf("expected flags %v, got %v", want, result.Flags)
	}
	if result.Score != 100 {
		t.Fatalf("expected score capped at 100, got %v", result.Score)
	}
	if len(result.Reasons) != len(result.Flags) {
		t.Fatalf("expected one reason per flag, got %v", result.Reasons)
	}
}
