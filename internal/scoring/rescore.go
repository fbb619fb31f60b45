package scoring

import (
	"context"
	"fmt"

	"jobsieve/internal/store"
)

// Rescore recomputes and stores the score of every job in st, keeping the
// ghost annotations as they are. Jobs are read and written in one
// transaction so a concurrent upsert cannot be scored from stale fields. It
// returns the number of jobs rescored.
func (e *Engine) Rescore(ctx context.Context, st *store.Store) (int, error) {
	var count int
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		count = 0
		jobs, err := tx.AllJobs(ctx)
		if err != nil {
			return fmt.Errorf("load jobs: %w", err)
		}
		for _, job := range jobs {
			if err := ctx.Err(); err != nil {
				return err
			}
			result := e.Score(job)
			if err := tx.SaveAnnotations(ctx, job.ID, result.Score, result.Breakdown(), job.GhostScore, job.GhostFlags); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rescore: %w", err)
	}
	return count, nil
}
