package scoring_test

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"jobsieve/internal/config"
	"jobsieve/internal/scoring"
	"jobsieve/internal/store"
	"jobsieve/internal/testsupport"
)

func ptr[T any](v T) *T { return &v }

func prefs() config.Scoring {
	p := config.Default().Scoring
	p.TargetTitles = []string{"Backend Engineer"}
	p.Skills = []string{"Go", "Postgres"}
	p.DesiredSalaryMin = 100000
	p.SalaryCurrency = "USD"
	p.Locations = []string{"Austin"}
	p.BlockedLocations = []string{"Antarctica"}
	p.RemoteOK = true
	p.PreferredCompanies = []string{"Acme"}
	p.AvoidCompanies = []string{"Initech"}
	return p
}

func baseJob() *store.Job {
	seen := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	posted := seen.Add(-24 * time.Hour)
	return &store.Job{
		Title:       "Senior Backend Engineer",
		Company:     "Globex",
		Location:    "Remote",
		Remote:      true,
		Description: "We write Go services backed by Postgres.",
		PostedAt:    &posted,
		LastSeenAt:  seen,
	}
}

func factor(t *testing.T, r scoring.Result, name string) scoring.Factor {
	t.Helper()
	for _, f := range r.Factors {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("factor %q missing from %+v", name, r.Factors)
	return scoring.Factor{}
}

func TestMissingSalaryZeroesOnlySalaryFactor(t *testing.T) {
	engine := scoring.NewEngine(prefs())
	result := engine.Score(baseJob())

	if got := factor(t, result, scoring.FactorSalary).Points; got != 0 {
		t.Fatalf("expected 0 salary points, got %v", got)
	}
	if got := factor(t, result, scoring.FactorSkillsTitle).Points; got != 40 {
		t.Fatalf("expected full skills/title points, got %v", got)
	}
	if got := factor(t, result, scoring.FactorLocation).Points; got != 20 {
		t.Fatalf("expected full location points, got %v", got)
	}
	if got := factor(t, result, scoring.FactorRecency).Points; got != 5 {
		t.Fatalf("expected full recency points, got %v", got)
	}
	if got := factor(t, result, scoring.FactorCompany).Points; got != 5 {
		t.Fatalf("expected half company points, got %v", got)
	}
	if result.Score != 70 {
		t.Fatalf("expected total 70, got %v", result.Score)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	engine := scoring.NewEngine(prefs())
	job := baseJob()
	job.SalaryMax = ptr(80000.0)
	job.SalaryCurrency = "USD"

	first := engine.Score(job)
	for range 5 {
		next := engine.Score(job)
		if next.Score != first.Score || next.Breakdown() != first.Breakdown() {
			t.Fatalf("score changed between runs: %v vs %v", first, next)
		}
	}

	var decoded []scoring.Factor
	if err := json.Unmarshal([]byte(first.Breakdown()), &decoded); err != nil {
		t.Fatalf("breakdown is not JSON: %v", err)
	}
	order := []string{scoring.FactorSkillsTitle, scoring.FactorSalary, scoring.FactorLocation, scoring.FactorCompany, scoring.FactorRecency}
	for i, f := range decoded {
		if f.Name != order[i] {
			t.Fatalf("factor %d: expected %s, got %s", i, order[i], f.Name)
		}
	}
}

func TestScoreStaysWithinBounds(t *testing.T) {
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		job  *store.Job
	}{
		{"empty", &store.Job{}},
		{"huge salary", &store.Job{Title: "Backend Engineer", SalaryMin: ptr(1e12), SalaryMax: ptr(1e13), Company: "Acme", Remote: true}},
		{"negative salary", &store.Job{Title: "x", SalaryMin: ptr(-5.0), SalaryMax: ptr(-1.0)}},
		{"posted after last seen", &store.Job{Title: "Backend Engineer", PostedAt: &future, LastSeenAt: future.Add(-time.Hour)}},
		{"ancient", func() *store.Job {
			j := baseJob()
			old := j.LastSeenAt.AddDate(-3, 0, 0)
			j.PostedAt = &old
			return j
		}()},
	}
	engine := scoring.NewEngine(prefs())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := engine.Score(tc.job)
			if result.Score < 0 || result.Score > 100 || math.IsNaN(result.Score) {
				t.Fatalf("score out of bounds: %v", result.Score)
			}
			for _, f := range result.Factors {
				if f.Points < 0 || f.Points > f.Weight {
					t.Fatalf("factor %s out of bounds: %v / %v", f.Name, f.Points, f.Weight)
				}
			}
		})
	}
}

func TestSalaryFactor(t *testing.T) {
	engine := scoring.NewEngine(prefs())
	cases := []struct {
		name     string
		min, max *float64
		currency string
		want     float64
	}{
		{"reaches minimum", ptr(90000.0), ptr(120000.0), "USD", 25},
		{"partial", nil, ptr(80000.0), "USD", 20},
		{"min only", ptr(50000.0), nil, "usd", 12.5},
		{"currency mismatch", ptr(150000.0), ptr(160000.0), "EUR", 0},
		{"missing", nil, nil, "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := baseJob()
			job.SalaryMin, job.SalaryMax, job.SalaryCurrency = tc.min, tc.max, tc.currency
			if got := factor(t, engine.Score(job), scoring.FactorSalary).Points; got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestLocationAndCompanyFactors(t *testing.T) {
	engine := scoring.NewEngine(prefs())

	onsite := baseJob()
	onsite.Remote = false
	onsite.Location = "Austin, TX"
	if got := factor(t, engine.Score(onsite), scoring.FactorLocation).Points; got != 20 {
		t.Fatalf("expected preferred location to score full, got %v", got)
	}

	blocked := baseJob()
	blocked.Location = "Remote - Antarctica"
	if got := factor(t, engine.Score(blocked), scoring.FactorLocation).Points; got != 0 {
		t.Fatalf("expected blocked location to score 0, got %v", got)
	}

	unknown := baseJob()
	unknown.Remote = false
	unknown.Location = ""
	if got := factor(t, engine.Score(unknown), scoring.FactorLocation).Points; got != 0 {
		t.Fatalf("expected unknown location to score 0, got %v", got)
	}

	preferred := baseJob()
	preferred.Company = "Acme Corp"
	if got := factor(t, engine.Score(preferred), scoring.FactorCompany).Points; got != 10 {
		t.Fatalf("expected preferred company full points, got %v", got)
	}
	avoided := baseJob()
	avoided.Company = "Initech"
	if got := factor(t, engine.Score(avoided), scoring.FactorCompany).Points; got != 0 {
		t.Fatalf("expected avoided company 0 points, got %v", got)
	}
}

func TestRecencyDecaysLinearly(t *testing.T) {
	engine := scoring.NewEngine(prefs())
	job := baseJob()
	posted := job.LastSeenAt.Add(-time.Duration(18.5 * 24 * float64(time.Hour)))
	job.PostedAt = &posted
	if got := factor(t, engine.Score(job), scoring.FactorRecency).Points; got != 2.5 {
		t.Fatalf("expected 2.5 recency points halfway between fresh and stale, got %v", got)
	}
}

func TestSkillsMatchWholeWords(t *testing.T) {
	p := prefs()
	p.TargetTitles = nil
	p.Skills = []string{"go"}
	engine := scoring.NewEngine(p)

	job := baseJob()
	job.Title = "Engineer"
	job.Description = "Experience with Google Cloud and Django."
	if got := factor(t, engine.Score(job), scoring.FactorSkillsTitle).Points; got != 0 {
		t.Fatalf("expected no skill match inside other words, got %v", got)
	}
	job.Description = "Experience with Go (1.22+)."
	if got := factor(t, engine.Score(job), scoring.FactorSkillsTitle).Points; got != 40 {
		t.Fatalf("expected full skill coverage, got %v", got)
	}
}

func TestRescoreUpdatesStoredJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	seen := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	sighting := testsupport.Sighting("hash-rescore", seen)
	sighting.Remote = true
	res := testsupport.MustUpsert(t, st, sighting)

	count, err := scoring.NewEngine(prefs()).Rescore(ctx, st)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job rescored, got %d", count)
	}
	job, err := st.GetJob(ctx, res.Job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Score <= 0 || job.FactorBreakdown == "[]" {
		t.Fatalf("expected stored score and breakdown, got %v %q", job.Score, job.FactorBreakdown)
	}

	p := prefs()
	p.PreferredCompanies = nil
	p.AvoidCompanies = []string{"Acme"}
	if _, err := scoring.NewEngine(p).Rescore(ctx, st); err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	lowered, err := st.GetJob(ctx, res.Job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if lowered.Score >= job.Score {
		t.Fatalf("expected avoiding the company to lower the score: %v -> %v", job.Score, lowered.Score)
	}
}
