package scoring

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"jobsieve/internal/config"
	"jobsieve/internal/store"
)

// Factor names, in breakdown order.
const (
	FactorSkillsTitle = "skills_title"
	FactorSalary      = "salary"
	FactorLocation    = "location"
	FactorCompany     = "company"
	FactorRecency     = "recency"
)

// Factor is one weighted contribution to a job's score.
type Factor struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
	Weight float64 `json:"weight"`
	Reason string  `json:"reason"`
}

// Result is a job's total score and its per-factor breakdown.
type Result struct {
	Score   float64
	Factors []Factor
}

// Breakdown serializes the factors as a JSON array.
func (r Result) Breakdown() string {
	if len(r.Factors) == 0 {
		return "[]"
	}
	data, err := json.Marshal(r.Factors)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// Engine scores jobs against one set of preferences.
type Engine struct {
	prefs     config.Scoring
	titles    []string
	skills    []string
	locations []string
	blocked   []string
	preferred []string
	avoid     []string
}

// NewEngine prepares an engine for prefs. List entries are matched
// case-insensitively.
func NewEngine(prefs config.Scoring) *Engine {
	return &Engine{
		prefs:     prefs,
		titles:    lowerAll(prefs.TargetTitles),
		skills:    lowerAll(prefs.Skills),
		locations: lowerAll(prefs.Locations),
		blocked:   lowerAll(prefs.BlockedLocations),
		preferred: lowerAll(prefs.PreferredCompanies),
		avoid:     lowerAll(prefs.AvoidCompanies),
	}
}

// Score computes the weighted score for job.
func (e *Engine) Score(job *store.Job) Result {
	if job == nil {
		return Result{}
	}
	w := e.prefs.Weights
	factors := []Factor{
		e.skillsTitle(job, w.SkillsTitle),
		e.salary(job, w.Salary),
		e.location(job, w.Location),
		e.company(job, w.Company),
		e.recency(job, w.Recency),
	}
	var total float64
	for i := range factors {
		factors[i].Points = round2(clamp(factors[i].Points, 0, factors[i].Weight))
		total += factors[i].Points
	}
	return Result{Score: round2(clamp(total, 0, 100)), Factors: factors}
}

func (e *Engine) skillsTitle(job *store.Job, weight float64) Factor {
	f := Factor{Name: FactorSkillsTitle, Weight: weight}
	if len(e.titles) == 0 && len(e.skills) == 0 {
		f.Reason = "no target titles or skills configured"
		return f
	}

	title := strings.ToLower(job.Title)
	titleHit := 0.0
	matchedTitle := ""
	for _, t := range e.titles {
		if containsTerm(title, t) {
			titleHit = 1
			matchedTitle = t
			break
		}
	}

	text := title + " " + strings.ToLower(job.Description)
	found := 0
	for _, s := range e.skills {
		if containsTerm(text, s) {
			found++
		}
	}
	coverage := 0.0
	if len(e.skills) > 0 {
		coverage = float64(found) / float64(len(e.skills))
	}

	switch {
	case len(e.titles) == 0:
		f.Points = weight * coverage
	case len(e.skills) == 0:
		f.Points = weight * titleHit
	default:
		f.Points = weight/2*titleHit + weight/2*coverage
	}

	parts := make([]string, 0, 2)
	if len(e.titles) > 0 {
		if matchedTitle != "" {
			parts = append(parts, fmt.Sprintf("title matches %q", matchedTitle))
		} else {
			parts = append(parts, "no target title match")
		}
	}
	if len(e.skills) > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d skills", found, len(e.skills)))
	}
	f.Reason = strings.Join(parts, "; ")
	return f
}

func (e *Engine) salary(job *store.Job, weight float64) Factor {
	f := Factor{Name: FactorSalary, Weight: weight}
	desired := e.prefs.DesiredSalaryMin
	if desired <= 0 {
		f.Reason = "no salary preference"
		return f
	}
	top := job.SalaryMax
	if top == nil {
		top = job.SalaryMin
	}
	if top == nil || *top <= 0 {
		f.Reason = "salary not posted"
		return f
	}
	if want := e.prefs.SalaryCurrency; want != "" && job.SalaryCurrency != "" && !strings.EqualFold(want, job.SalaryCurrency) {
		f.Reason = fmt.Sprintf("currency %s does not match %s", job.SalaryCurrency, want)
		return f
	}
	if *top >= desired {
		f.Points = weight
		f.Reason = "range reaches desired minimum"
		return f
	}
	f.Points = weight * (*top / desired)
	f.Reason = fmt.Sprintf("top of range is %.0f%% of desired minimum", *top/desired*100)
	return f
}

func (e *Engine) location(job *store.Job, weight float64) Factor {
	f := Factor{Name: FactorLocation, Weight: weight}
	loc := strings.ToLower(job.Location)
	for _, b := range e.blocked {
		if loc != "" && containsTerm(loc, b) {
			f.Reason = fmt.Sprintf("location %q is blocked", job.Location)
			return f
		}
	}
	if job.Remote && e.prefs.RemoteOK {
		f.Points = weight
		f.Reason = "remote"
		return f
	}
	if loc == "" {
		f.Reason = "location unknown"
		return f
	}
	for _, l := range e.locations {
		if containsTerm(loc, l) {
			f.Points = weight
			f.Reason = fmt.Sprintf("location matches %q", l)
			return f
		}
	}
	f.Reason = "location not preferred"
	return f
}

func (e *Engine) company(job *store.Job, weight float64) Factor {
	f := Factor{Name: FactorCompany, Weight: weight}
	company := strings.ToLower(strings.TrimSpace(job.Company))
	if company == "" {
		f.Reason = "company unknown"
		return f
	}
	for _, a := range e.avoid {
		if company == a || containsTerm(company, a) {
			f.Reason = "avoided company"
			return f
		}
	}
	for _, p := range e.preferred {
		if company == p || containsTerm(company, p) {
			f.Points = weight
			f.Reason = "preferred company"
			return f
		}
	}
	f.Points = weight / 2
	f.Reason = "neutral company"
	return f
}

func (e *Engine) recency(job *store.Job, weight float64) Factor {
	f := Factor{Name: FactorRecency, Weight: weight}
	if job.PostedAt == nil || job.LastSeenAt.IsZero() {
		f.Reason = "posting date unknown"
		return f
	}
	age := max(job.LastSeenAt.Sub(*job.PostedAt), 0)
	days := age.Hours() / 24
	fresh := float64(e.prefs.FreshDays)
	stale := float64(e.prefs.StaleDays)
	switch {
	case days <= fresh:
		f.Points = weight
	case days >= stale || stale <= fresh:
		f.Points = 0
	default:
		f.Points = weight * (stale - days) / (stale - fresh)
	}
	f.Reason = fmt.Sprintf("%s old when last seen", formatAge(age))
	return f
}

// containsTerm reports whether term occurs in text on word boundaries, so
// "go" does not match "google". Both must be lowercase.
func containsTerm(text, term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return false
	}
	for start := 0; start <= len(text)-len(term); {
		idx := strings.Index(text[start:], term)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(term)
		if boundaryBefore(text, idx) && boundaryAfter(text, end) {
			return true
		}
		start = idx + 1
	}
	return false
}

func boundaryBefore(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	return !isWordByte(text[idx-1])
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	return !isWordByte(text[end])
}

// isWordByte treats every non-ASCII byte as part of a word.
func isWordByte(b byte) bool {
	return b >= 0x80 || b == '_' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

func formatAge(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
