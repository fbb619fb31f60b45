package testsupport

import (
	"context"
	"testing"
	"time"

	"jobsieve/internal/config"
	"jobsieve/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustUpsert writes one sighting in its own transaction.
func MustUpsert(t testing.TB, st *store.Store, s store.Sighting) store.UpsertResult {
	t.Helper()

	var result store.UpsertResult
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		result, err = tx.Upsert(context.Background(), s)
		return err
	})
	if err != nil {
		t.Fatalf("upsert %s: %v", s.ContentHash, err)
	}
	return result
}

// Sighting returns a minimal sighting for hash seen at seenAt.
func Sighting(hash string, seenAt time.Time) store.Sighting {
	return store.Sighting{
		ContentHash: hash,
		Source:      "test",
		URL:         "https://jobs.example.com/" + hash,
		Title:       "Backend Engineer",
		Company:     "Acme",
		SeenAt:      seenAt,
	}
}

// StoredJob returns an in-memory job last seen at seenAt, for pure evaluators.
func StoredJob(seenAt time.Time) *store.Job {
	return &store.Job{
		ID:          1,
		ContentHash: "hash-stored",
		Source:      "test",
		Title:       "Backend Engineer",
		Company:     "Acme",
		CreatedAt:   seenAt,
		UpdatedAt:   seenAt,
		LastSeenAt:  seenAt,
		TimesSeen:   1,
	}
}
