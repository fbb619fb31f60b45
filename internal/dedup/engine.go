package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jobsieve/internal/config"
	"jobsieve/internal/ghost"
	"jobsieve/internal/logging"
	"jobsieve/internal/scoring"
	"jobsieve/internal/sources"
	"jobsieve/internal/store"
)

// Outcome is what happened to one posting.
type Outcome struct {
	Job           *store.Job
	Created       bool
	ChangedFields []string
	Ghost         ghost.Result
}

// PageResult summarizes one applied or classified page.
type PageResult struct {
	New      int
	Updated  int
	Outcomes []Outcome
}

// Engine upserts pages and annotates the affected jobs.
type Engine struct {
	store    *store.Store
	scorer   *scoring.Engine
	detector *ghost.Detector
	fillDays map[string]int
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine wires the engine to st with scoring and ghost settings from cfg.
func NewEngine(st *store.Store, cfg *config.Config, logger *slog.Logger) *Engine {
	fill := make(map[string]int, len(cfg.Sources))
	for _, src := range cfg.Sources {
		if src.TypicalFillDays > 0 {
			fill[src.ID] = src.TypicalFillDays
		}
	}
	return &Engine{
		store:    st,
		scorer:   scoring.NewEngine(cfg.Scoring),
		detector: ghost.NewDetector(cfg.Ghost),
		fillDays: fill,
		logger:   logging.NewComponentLogger(logger, "dedup"),
		now:      time.Now,
	}
}

// Scorer returns the engine's scoring engine.
func (e *Engine) Scorer() *scoring.Engine {
	return e.scorer
}

// ApplyPage writes page in one transaction. Every posting in the page shares
// seenAt; a zero seenAt uses the current time.
func (e *Engine) ApplyPage(ctx context.Context, page sources.Page, seenAt time.Time) (PageResult, error) {
	if seenAt.IsZero() {
		seenAt = e.now()
	}
	var result PageResult
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		result = PageResult{Outcomes: make([]Outcome, 0, len(page.Postings))}
		for _, posting := range page.Postings {
			res, err := tx.Upsert(ctx, sighting(posting, seenAt))
			if err != nil {
				return err
			}
			outcome, err := e.annotate(ctx, tx, res)
			if err != nil {
				return err
			}
			if outcome.Created {
				result.New++
			} else {
				result.Updated++
			}
			result.Outcomes = append(result.Outcomes, outcome)
		}
		return nil
	})
	if err != nil {
		return PageResult{}, fmt.Errorf("apply page %d of %s: %w", page.Number, page.Source, err)
	}
	e.logger.Debug("page applied",
		logging.String(logging.FieldSource, page.Source),
		logging.Int("page", page.Number),
		logging.Int("new", result.New),
		logging.Int("updated", result.Updated),
	)
	return result, nil
}

func (e *Engine) annotate(ctx context.Context, tx *store.Tx, res store.UpsertResult) (Outcome, error) {
	job := res.Job
	score := e.scorer.Score(job)
	ghostResult := e.detector.Evaluate(job, e.fillDays[job.Source])
	if err := tx.SaveAnnotations(ctx, job.ID, score.Score, score.Breakdown(), ghostResult.Score, ghostResult.Flags); err != nil {
		return Outcome{}, err
	}
	job.Score = score.Score
	job.FactorBreakdown = score.Breakdown()
	job.GhostScore = ghostResult.Score
	job.GhostFlags = ghostResult.Flags
	return Outcome{Job: job, Created: res.Created, ChangedFields: res.ChangedFields, Ghost: ghostResult}, nil
}

// Classify hashes page and counts new versus already stored postings using
// read-only lookups. Nothing is written.
func (e *Engine) Classify(ctx context.Context, page sources.Page) (PageResult, error) {
	var result PageResult
	seen := make(map[string]bool, len(page.Postings))
	for _, posting := range page.Postings {
		hash := ContentHash(posting)
		if seen[hash] {
			result.Updated++
			continue
		}
		seen[hash] = true
		existing, err := e.store.FindByHash(ctx, hash)
		if err != nil {
			return PageResult{}, fmt.Errorf("classify page %d of %s: %w", page.Number, page.Source, err)
		}
		if existing == nil {
			result.New++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

func sighting(p sources.Posting, seenAt time.Time) store.Sighting {
	return store.Sighting{
		ContentHash:    ContentHash(p),
		Source:         p.Source,
		SourceJobID:    p.SourceJobID,
		URL:            p.URL,
		Title:          p.Title,
		Company:        p.Company,
		Location:       p.Location,
		Description:    p.Description,
		SalaryMin:      p.SalaryMin,
		SalaryMax:      p.SalaryMax,
		SalaryCurrency: p.SalaryCurrency,
		Remote:         p.Remote,
		PostedAt:       p.PostedAt,
		EditedAt:       p.EditedAt,
		SeenAt:         seenAt,
	}
}
